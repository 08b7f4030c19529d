package database

import (
	"github.com/jmoiron/sqlx"
)

type PgTeamChatRepository struct {
	conn *sqlx.DB
}

func NewPgTeamChatRepository(dsn string) (*PgTeamChatRepository, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, err
	}

	return &PgTeamChatRepository{conn: db}, nil
}

func (db *PgTeamChatRepository) Ping() error {
	return db.conn.Ping()
}

func (db *PgTeamChatRepository) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}
