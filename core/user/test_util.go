package user

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/mahudhurio/core"
)

// TokenVerifierFunc adapts an ordinary function to a TokenVerifier.
type TokenVerifierFunc func(idToken string) (GoogleProfile, error)

func (fn TokenVerifierFunc) Verify(idToken string) (GoogleProfile, error) { return fn(idToken) }

// NewValidatorMock returns a validator with all validators registered, and its translator.
func NewValidatorMock() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	RegisterValidators(validate, translator)
	return validate, translator
}

// NewServiceMock returns a Service with all validators registered, for tests.
func NewServiceMock(repo Repository, google TokenVerifier) *Service {
	validate, _ := NewValidatorMock()
	return NewService(repo, validate, google)
}
