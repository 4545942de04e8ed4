package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/annaliu2021/SuperHandy-backend-Fork/internal/model"
)

// TransactionLog is the append-only audit trail of balance changes. There is no
// update or delete path, by contract.
type TransactionLog struct {
	db *sql.DB
}

func NewTransactionLog(db *sql.DB) *TransactionLog {
	return &TransactionLog{db: db}
}

func (t *TransactionLog) Append(ctx context.Context, trans *model.TaskTrans) error {
	desc, err := json.Marshal(trans.Desc)
	if err != nil {
		return fmt.Errorf("marshal desc for trans %s: %w", trans.ID, err)
	}
	_, err = querierFrom(ctx, t.db).ExecContext(ctx,
		`INSERT INTO task_trans (id, task_id, user_id, tag, role, super_coin, helper_coin,
		                         salary, exposure_plan, description, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		trans.ID, string(trans.TaskId), string(trans.UserId), trans.Tag, string(trans.Role),
		trans.SuperCoin, trans.HelperCoin, trans.Salary, trans.ExposurePlan, desc, trans.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert trans %s: %w", trans.ID, err)
	}
	return nil
}

// ListFor returns a user's records ordered by creation time, ascending, so the
// balance can be reconstructed by replaying deltas.
func (t *TransactionLog) ListFor(ctx context.Context, userId model.UserId) ([]model.TaskTrans, error) {
	rows, err := querierFrom(ctx, t.db).QueryContext(ctx,
		`SELECT id, task_id, user_id, tag, role, super_coin, helper_coin,
		        salary, exposure_plan, description, created_at
		 FROM task_trans WHERE user_id = $1 ORDER BY created_at ASC, id ASC`,
		string(userId))
	if err != nil {
		return nil, fmt.Errorf("list trans for user %s: %w", userId, err)
	}
	defer rows.Close()

	var list []model.TaskTrans
	for rows.Next() {
		var trans model.TaskTrans
		var desc []byte
		err := rows.Scan(&trans.ID, &trans.TaskId, &trans.UserId, &trans.Tag, &trans.Role,
			&trans.SuperCoin, &trans.HelperCoin, &trans.Salary, &trans.ExposurePlan,
			&desc, &trans.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan trans for user %s: %w", userId, err)
		}
		if len(desc) > 0 {
			if err := json.Unmarshal(desc, &trans.Desc); err != nil {
				return nil, fmt.Errorf("unmarshal desc for trans %s: %w", trans.ID, err)
			}
		}
		list = append(list, trans)
	}
	return list, rows.Err()
}
