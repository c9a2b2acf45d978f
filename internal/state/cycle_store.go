// ./internal/state/cycle_store.go
package state

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/aegis-protocol/sentinel/internal/types"
)

// SaveCycleRecord persists one completed cycle to the database.
func SaveCycleRecord(record types.CycleRecord) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	positionJSON, err := json.Marshal(record.Position)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal position: %w", err)
	}

	query := `
		INSERT INTO cycle_records (
			cycle_number, record_timestamp,
			slot, source, price_usdc, priority_fee,
			health_factor, action, reason, proof,
			sold_sol, repaid_usdc, health_factor_after, quote_source, tx_id,
			position
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING record_id;
	`

	var recordID int64
	err = DB.QueryRow(
		query,
		record.CycleNumber, record.Timestamp,
		int64(record.Observation.Slot), record.Observation.Source, record.Observation.PriceUSDC, int64(record.Observation.PriorityFee),
		record.Decision.HealthFactor, string(record.Decision.Action.Kind), record.Decision.Reason, record.Decision.Proof,
		record.Receipt.SoldSOL, record.Receipt.RepaidUSDC, record.Receipt.HealthFactorAfter, record.Receipt.QuoteSource, record.Receipt.TxID,
		positionJSON,
	).Scan(&recordID)

	if err != nil {
		return 0, fmt.Errorf("failed to save cycle record: %w", err)
	}

	log.Debug().
		Int64("record_id", recordID).
		Int("cycle_number", record.CycleNumber).
		Uint64("slot", record.Observation.Slot).
		Msg("Cycle record saved to database")

	return recordID, nil
}

// GetRecentCycles returns the most recent persisted cycles, newest first.
func GetRecentCycles(limit int) ([]types.CycleRecord, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT record_id, cycle_number, record_timestamp,
			slot, source, price_usdc, priority_fee,
			health_factor, action, reason, proof,
			sold_sol, repaid_usdc, health_factor_after, quote_source, tx_id,
			position
		FROM cycle_records
		ORDER BY record_timestamp DESC
		LIMIT $1;
	`

	rows, err := DB.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query cycle records: %w", err)
	}
	defer rows.Close()

	var records []types.CycleRecord
	for rows.Next() {
		var (
			record       types.CycleRecord
			slot         int64
			priorityFee  int64
			actionKind   string
			positionJSON []byte
		)

		err := rows.Scan(
			&record.RecordID, &record.CycleNumber, &record.Timestamp,
			&slot, &record.Observation.Source, &record.Observation.PriceUSDC, &priorityFee,
			&record.Decision.HealthFactor, &actionKind, &record.Decision.Reason, &record.Decision.Proof,
			&record.Receipt.SoldSOL, &record.Receipt.RepaidUSDC, &record.Receipt.HealthFactorAfter, &record.Receipt.QuoteSource, &record.Receipt.TxID,
			&positionJSON,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cycle record: %w", err)
		}

		record.Observation.Slot = uint64(slot)
		record.Observation.PriorityFee = uint64(priorityFee)
		record.Decision.Slot = uint64(slot)
		record.Decision.Price = record.Observation.PriceUSDC
		record.Decision.Action.Kind = types.ActionKind(actionKind)
		record.Receipt.Slot = uint64(slot)
		record.Receipt.Action = actionKind

		if err := json.Unmarshal(positionJSON, &record.Position); err != nil {
			return nil, fmt.Errorf("failed to unmarshal position: %w", err)
		}

		records = append(records, record)
	}

	return records, rows.Err()
}
