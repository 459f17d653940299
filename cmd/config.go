package main

import (
	"fmt"
	"strings"
	"time"

	"order-sync/domain"
)

type Config struct {
	QueueSize        int           `env:"QUEUE_SIZE,required=true"`
	SinkTimeout      time.Duration `env:"SINK_TIMEOUT,required=true"`
	HandshakeTimeout time.Duration `env:"HANDSHAKE_TIMEOUT,required=true"`
	RestartInterval  time.Duration `env:"RESTART_INTERVAL,required=true"`
	TokenDuration    time.Duration `env:"AUTH_TOKEN_DURATION,required=true"`
	JWTSecret        string        `env:"JWT_SECRET,required=true"`
	BcryptCost       int           `env:"BCRYPT_COST,default=10"`
	BadgerFilepath   string        `env:"BADGER_FILEPATH,required=true"`
	LogLevel         string        `env:"LOG_LEVEL,required=true"`
	BlockedWords     string        `env:"BLOCKED_WORDS"`
	CharReplacement  string        `env:"CHARACTER_REPLACEMENT,default=*"`
	StaffAccounts    string        `env:"STAFF_ACCOUNTS,required=true"`
	Host             string        `env:"HOST,default=localhost"`
	Port             int           `env:"PORT,default=8080"`

	// Backbone settings only matter when several instances share the load.
	BackboneEnabled  bool   `env:"BACKBONE_ENABLED,default=false"`
	BackboneURL      string `env:"BACKBONE_URL"`
	BackboneExchange string `env:"BACKBONE_EXCHANGE,default=orders.events"`
	InstanceID       string `env:"INSTANCE_ID"`
}

func (c Config) CharacterRune() (rune, error) {
	r := []rune(c.CharReplacement)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			c.CharReplacement,
		)
	}
	return r[0], nil
}

func (c Config) BlockedWordList() []string {
	if strings.TrimSpace(c.BlockedWords) == "" {
		return nil
	}
	var words []string
	for _, w := range strings.Split(c.BlockedWords, ",") {
		if w = strings.TrimSpace(w); w != "" {
			words = append(words, w)
		}
	}
	return words
}

// staffEntry is one provisioned account, parsed from
// STAFF_ACCOUNTS="username:password:ROLE,username:password:ROLE".
type staffEntry struct {
	Username string
	Password string
	Role     domain.Role
}

func (c Config) StaffEntries() ([]staffEntry, error) {
	var entries []staffEntry
	for _, raw := range strings.Split(c.StaffAccounts, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		parts := strings.SplitN(raw, ":", 3)
		if len(parts) != 3 {
			return nil, fmt.Errorf("STAFF_ACCOUNTS entry %q must be username:password:ROLE", raw)
		}
		role, err := domain.ParseRole(parts[2])
		if err != nil {
			return nil, fmt.Errorf("STAFF_ACCOUNTS entry %q: %w", raw, err)
		}
		if !role.IsStaff() {
			return nil, fmt.Errorf("STAFF_ACCOUNTS entry %q: role must be staff", raw)
		}
		entries = append(entries, staffEntry{
			Username: parts[0],
			Password: parts[1],
			Role:     role,
		})
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("STAFF_ACCOUNTS must provision at least one account")
	}
	return entries, nil
}
