package a

import "context"

type Store interface {
	WithTx(ctx context.Context, fn func(tx Store) error) error
	MarkIdentityBurned(ctx context.Context, id string, chapter int) (bool, error)
	LogAction(ctx context.Context, action string) error
}

type service struct {
	db Store
}

func (s *service) bad(ctx context.Context, id string) error {
	return s.db.WithTx(ctx, func(tx Store) error {
		if _, err := tx.MarkIdentityBurned(ctx, id, 12); err != nil {
			return err
		}
		return s.db.LogAction(ctx, "identity_burned") // want "s.db.LogAction called inside WithTx, use the transaction"
	})
}

func (s *service) good(ctx context.Context, id string) error {
	err := s.db.WithTx(ctx, func(tx Store) error {
		if _, err := tx.MarkIdentityBurned(ctx, id, 12); err != nil {
			return err
		}
		return tx.LogAction(ctx, "identity_burned")
	})
	if err != nil {
		return err
	}
	return s.db.LogAction(ctx, "committed")
}
