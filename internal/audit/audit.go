/*

This file contains the append-only CSV audit log. One row per cycle, written
synchronously after execution, carrying every input and outcome needed to
replay and verify the decision. Write failures are surfaced to the caller for
logging but never abort the cycle.

*/

package audit

import (
	"fmt"
	"os"
	"strings"

	"github.com/aegis-protocol/sentinel/internal/types"
)

// Header is the fixed audit log column contract.
const Header = "ts_ms,slot,source,price,hf,action,sold_sol,repaid_usdc,quote_source,tx_id,proof,reason"

// Writer appends cycle records to a CSV file, emitting the header on first
// creation.
type Writer struct {
	path string
}

// NewWriter builds an audit writer targeting path. The file is opened lazily
// on each append so a transient filesystem failure in one cycle does not
// poison later ones.
func NewWriter(path string) *Writer {
	return &Writer{path: path}
}

// Path returns the configured log path.
func (w *Writer) Path() string { return w.path }

// Append writes one cycle row. Emits the header first iff the target does not
// yet exist.
func (w *Writer) Append(obs types.MarketObservation, decision types.Decision, receipt types.ExecutionReceipt) error {
	_, statErr := os.Stat(w.path)
	fileExists := statErr == nil

	file, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return types.Errorf(types.ErrIo, "audit log", "failed to open %s: %v", w.path, err)
	}
	defer file.Close()

	if !fileExists {
		if _, err := fmt.Fprintln(file, Header); err != nil {
			return types.Errorf(types.ErrIo, "audit log", "failed to write header: %v", err)
		}
	}

	_, err = fmt.Fprintf(file, "%d,%d,%s,%.4f,%.6f,%s,%.6f,%.4f,%s,%s,%s,%s\n",
		obs.TimestampMS,
		decision.Slot,
		obs.Source,
		decision.Price,
		decision.HealthFactor,
		receipt.Action,
		receipt.SoldSOL,
		receipt.RepaidUSDC,
		receipt.QuoteSource,
		receipt.TxID,
		decision.Proof,
		sanitizeField(decision.Reason),
	)
	if err != nil {
		return types.Errorf(types.ErrIo, "audit log", "failed to append row: %v", err)
	}

	return nil
}

// sanitizeField keeps the row parseable by replacing commas in free-form text.
func sanitizeField(s string) string {
	return strings.ReplaceAll(s, ",", " ")
}
