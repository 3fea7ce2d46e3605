package repository

import (
	"fmt"

	"casino-core/internal/config"
	"casino-core/internal/http-server/handlers/mysql"
)

type NonceRepository struct {
	dbhandler mysql.Handler
}

func NewNonceRepository(dbhandler mysql.Handler) *NonceRepository {
	return &NonceRepository{dbhandler: dbhandler}
}

// Next hands out the next nonce for (player, game) as a single atomic
// upsert-increment. Two rounds issued in the same millisecond get distinct,
// strictly increasing nonces; nonce reuse would collapse two commitments
// into the same random value space.
func (repo *NonceRepository) Next(playerID int64, game config.Game) (int64, error) {
	const op = "repository.nonce.Next"

	const query = "INSERT INTO nonce_counters(player_id, game, nonce) VALUES(?, ?, LAST_INSERT_ID(1)) " +
		"ON DUPLICATE KEY UPDATE nonce = LAST_INSERT_ID(nonce + 1)"
	res, err := repo.dbhandler.PrepareAndExecute(query, playerID, string(game))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	nonce, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return nonce, nil
}
