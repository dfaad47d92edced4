package app

import (
	"fmt"
	"log/slog"

	"github.com/adrisa007/guardiao/pkg/cryptox"
	"github.com/adrisa007/guardiao/pkg/jwtx"
)

const signingKeyID = "guardiao-1"

// InitAuthKeys builds the token signer and verifier for the configured
// algorithm.
//
//   - EdDSA: the PKCS8 key in AUTH_SIGNING_KEY_FILE is loaded, or generated
//     and written there on first start. Tokens survive restarts.
//   - HS256: AUTH_JWT_SECRET is used as the shared secret.
func InitAuthKeys(cfg Config, logger *slog.Logger) (jwtx.Signer, jwtx.Verifier, error) {
	var key []byte
	switch cfg.Algorithm {
	case jwtx.AlgEdDSA:
		pem, created, err := cryptox.LoadOrCreateEd25519Key(cfg.SigningKeyFile)
		if err != nil {
			return nil, nil, err
		}
		if created {
			logger.Warn("generated new signing key", "path", cfg.SigningKeyFile)
		}
		key = pem
	case jwtx.AlgHS256:
		key = []byte(cfg.JWTSecret)
	default:
		return nil, nil, fmt.Errorf("unsupported algorithm %q", cfg.Algorithm)
	}

	signer, verifier, err := jwtx.NewPair(cfg.Algorithm, signingKeyID, key, jwtx.VerifyOptions{
		Issuer: cfg.Issuer,
	})
	if err != nil {
		return nil, nil, err
	}

	logger.Info("signing key loaded", "algorithm", signer.Alg(), "issuer", cfg.Issuer)
	return signer, verifier, nil
}
