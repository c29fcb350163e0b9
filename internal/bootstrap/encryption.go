package bootstrap

import (
	"log/slog"
	"strings"

	"github.com/jemaat/portal/internal/data/cryptoutil"
)

// CreateSealer builds the keyring that seals client tokens in Redis.
// An empty key stores tokens only encoded, with a warning.
//
//nolint:ireturn // the plain sealer and the keyring share the interface.
func CreateSealer(key string, retired []string, logger *slog.Logger) cryptoutil.Sealer {
	if logger == nil {
		logger = slog.Default()
	}
	key = strings.TrimSpace(key)
	if key == "" {
		logger.Warn("SESSION_CREDENTIAL_KEY is empty, tokens are stored unencrypted")
		return cryptoutil.Plain{}
	}

	retiredKeys := make([][]byte, 0, len(retired))
	for _, r := range retired {
		if r = strings.TrimSpace(r); r != "" {
			retiredKeys = append(retiredKeys, cryptoutil.DeriveKey(r))
		}
	}

	kr, err := cryptoutil.NewKeyring(cryptoutil.DeriveKey(key), retiredKeys...)
	if err != nil {
		// DeriveKey always yields KeySize bytes, so this only trips on a broken AES runtime.
		logger.Error("failed to build credential keyring, tokens are stored unencrypted", "error", err)
		return cryptoutil.Plain{}
	}
	logger.Info("credential encryption enabled", "key_id", kr.PrimaryID(), "retired_keys", len(retiredKeys))
	return kr
}
