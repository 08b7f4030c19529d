package database

import (
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

const (
	defaultPageSize = 25
	maxPageSize     = 100

	uniqueViolation = "23505"
)

func isUniqueViolation(err error) bool {
	pqErr, ok := err.(*pq.Error)
	return ok && pqErr.Code == uniqueViolation
}

// clampLimit normalizes a requested page size into [1, maxPageSize],
// substituting the default for zero or negative values.
func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultPageSize
	}
	if limit > maxPageSize {
		return maxPageSize
	}
	return limit
}

func (db *PgTeamChatRepository) CreateUser(params CreateUserParams) (User, error) {
	query, args, err := sq.Insert("users").
		Columns("id", "name", "email", "password_hash", "created_at").
		Values(uuid.NewString(), params.Name, params.Email, params.PasswordHash, time.Now().UTC()).
		Suffix("RETURNING id, name, email, password_hash, created_at").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return User{}, fmt.Errorf("build query: %w", err)
	}

	var u User
	if err := db.conn.Get(&u, query, args...); err != nil {
		if isUniqueViolation(err) {
			return User{}, ErrDuplicateEmail
		}
		return User{}, err
	}

	return u, nil
}

func (db *PgTeamChatRepository) GetUserByEmail(email string) (User, error) {
	query, args, err := sq.Select("id", "name", "email", "password_hash", "created_at").
		From("users").
		Where(sq.Eq{"email": email}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return User{}, fmt.Errorf("build query: %w", err)
	}

	var u User
	err = db.conn.Get(&u, query, args...)

	return u, err
}

func (db *PgTeamChatRepository) GetUserById(id string) (User, error) {
	query, args, err := sq.Select("id", "name", "email", "password_hash", "created_at").
		From("users").
		Where(sq.Eq{"id": id}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return User{}, fmt.Errorf("build query: %w", err)
	}

	var u User
	err = db.conn.Get(&u, query, args...)

	return u, err
}

func (db *PgTeamChatRepository) GetUsersByIds(ids []string) ([]User, error) {
	if len(ids) == 0 {
		return []User{}, nil
	}

	query, args, err := sq.Select("id", "name", "email", "password_hash", "created_at").
		From("users").
		Where(sq.Eq{"id": ids}).
		OrderBy("name ASC").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var users []User
	err = db.conn.Select(&users, query, args...)

	return users, err
}

func (db *PgTeamChatRepository) ListChannels() ([]Channel, error) {
	query, args, err := sq.Select(
		"c.id",
		"c.name",
		"c.is_private",
		"c.created_at",
		"COUNT(m.user_id) AS member_count",
	).
		From("channels c").
		LeftJoin("memberships m ON m.channel_id = c.id").
		GroupBy("c.id", "c.name", "c.is_private", "c.created_at").
		OrderBy("c.created_at DESC").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var channels []Channel
	err = db.conn.Select(&channels, query, args...)

	return channels, err
}

func (db *PgTeamChatRepository) CreateChannel(params CreateChannelParams) (Channel, error) {
	query, args, err := sq.Insert("channels").
		Columns("id", "name", "is_private", "created_at").
		Values(params.Id, params.Name, params.IsPrivate, time.Now().UTC()).
		Suffix("RETURNING id, name, is_private, created_at").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return Channel{}, fmt.Errorf("build query: %w", err)
	}

	var c Channel
	err = db.conn.Get(&c, query, args...)

	return c, err
}

func (db *PgTeamChatRepository) GetChannelById(id string) (Channel, error) {
	query, args, err := sq.Select(
		"c.id",
		"c.name",
		"c.is_private",
		"c.created_at",
		"COUNT(m.user_id) AS member_count",
	).
		From("channels c").
		LeftJoin("memberships m ON m.channel_id = c.id").
		Where(sq.Eq{"c.id": id}).
		GroupBy("c.id", "c.name", "c.is_private", "c.created_at").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return Channel{}, fmt.Errorf("build query: %w", err)
	}

	var c Channel
	err = db.conn.Get(&c, query, args...)

	return c, err
}

func (db *PgTeamChatRepository) JoinChannel(userId, channelId string) (Membership, error) {
	query, args, err := sq.Insert("memberships").
		Columns("user_id", "channel_id", "created_at").
		Values(userId, channelId, time.Now().UTC()).
		Suffix("RETURNING user_id, channel_id, created_at").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return Membership{}, fmt.Errorf("build query: %w", err)
	}

	var m Membership
	if err := db.conn.Get(&m, query, args...); err != nil {
		if isUniqueViolation(err) {
			return Membership{}, ErrAlreadyMember
		}
		return Membership{}, err
	}

	return m, nil
}

func (db *PgTeamChatRepository) LeaveChannel(userId, channelId string) error {
	query, args, err := sq.Delete("memberships").
		Where(sq.Eq{"user_id": userId, "channel_id": channelId}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	_, err = db.conn.Exec(query, args...)

	return err
}

func (db *PgTeamChatRepository) CreateMessage(channelId, senderId, text string) (Message, error) {
	msg := Message{
		Id:        uuid.NewString(),
		ChannelId: channelId,
		SenderId:  senderId,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}

	query, args, err := sq.Insert("messages").
		Columns("id", "channel_id", "sender_id", "text", "created_at").
		Values(msg.Id, msg.ChannelId, msg.SenderId, msg.Text, msg.CreatedAt).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return Message{}, fmt.Errorf("build query: %w", err)
	}

	if _, err := db.conn.Exec(query, args...); err != nil {
		return Message{}, err
	}

	return msg, nil
}

func (db *PgTeamChatRepository) GetMessage(id string) (Message, error) {
	query, args, err := sq.Select(
		"m.id",
		"m.channel_id",
		"m.sender_id",
		"m.text",
		"m.created_at",
		"u.name AS sender_name",
		"u.email AS sender_email",
	).
		From("messages m").
		Join("users u ON u.id = m.sender_id").
		Where(sq.Eq{"m.id": id}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return Message{}, fmt.Errorf("build query: %w", err)
	}

	var m Message
	err = db.conn.Get(&m, query, args...)

	return m, err
}

func (db *PgTeamChatRepository) DeleteMessage(id string) error {
	query, args, err := sq.Delete("messages").
		Where(sq.Eq{"id": id}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	res, err := db.conn.Exec(query, args...)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}

	return nil
}

// GetMessages returns up to limit messages for a channel, newest first. When a
// cursor message id is given, only rows strictly older than the cursor message
// are returned, compared on (created_at, id) so that concurrent inserts of
// newer rows never shift the page (keyset pagination, not offset). An unknown
// cursor yields an empty page.
func (db *PgTeamChatRepository) GetMessages(channelId string, limit int, cursor string) ([]Message, error) {
	qb := sq.Select(
		"m.id",
		"m.channel_id",
		"m.sender_id",
		"m.text",
		"m.created_at",
		"u.name AS sender_name",
		"u.email AS sender_email",
	).
		From("messages m").
		Join("users u ON u.id = m.sender_id").
		Where(sq.Eq{"m.channel_id": channelId}).
		OrderBy("m.created_at DESC", "m.id DESC").
		Limit(uint64(clampLimit(limit)))

	if cursor != "" {
		qb = qb.Where(sq.Expr(
			"(m.created_at, m.id) < (SELECT created_at, id FROM messages WHERE id = ?)",
			cursor,
		))
	}

	query, args, err := qb.PlaceholderFormat(sq.Dollar).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var messages []Message
	err = db.conn.Select(&messages, query, args...)

	return messages, err
}
