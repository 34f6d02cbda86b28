package user

import (
	"sync"

	googleAuthIDTokenVerifier "github.com/futurenda/google-auth-id-token-verifier"
	"github.com/pkg/errors"
)

type googleVerifier struct {
	clientID string

	mu       sync.Mutex // guards the verifier's certificate cache
	verifier googleAuthIDTokenVerifier.Verifier
}

var _ TokenVerifier = (*googleVerifier)(nil)

// NewGoogleVerifier returns a TokenVerifier accepting ID tokens issued for `clientID`.
func NewGoogleVerifier(clientID string) TokenVerifier {
	return &googleVerifier{clientID: clientID}
}

func (gv *googleVerifier) Verify(idToken string) (GoogleProfile, error) {
	gv.mu.Lock()
	err := gv.verifier.VerifyIDToken(idToken, []string{gv.clientID})
	gv.mu.Unlock()
	if err != nil {
		return GoogleProfile{}, errors.Wrap(err, "verifying id token")
	}
	claims, err := googleAuthIDTokenVerifier.Decode(idToken)
	if err != nil {
		return GoogleProfile{}, errors.Wrap(err, "decoding id token")
	}
	return GoogleProfile{GoogleID: claims.Sub, Email: claims.Email, Name: claims.Name}, nil
}
