package authapi

import "github.com/wikr-wasd/123Hansa-sub007/cmd/security/password"

type hashRequest struct {
	Secret     string `json:"secret" validate:"required,max=4096"`
	WorkFactor int    `json:"work_factor" validate:"omitempty,min=4,max=31"`
}

type verifyRequest struct {
	Secret string `json:"secret" validate:"max=4096"`
	Hash   string `json:"hash" validate:"required,max=512"`
}

type validateRequestBody struct {
	Secret string `json:"secret" validate:"max=4096"`
}

type generateRequest struct {
	Length int  `json:"length" validate:"omitempty,min=1"`
	Strong bool `json:"strong"`
}

type secretRequest struct {
	Secret string `json:"secret" validate:"required,max=4096"`
}

type hashResponse struct {
	Hash string `json:"hash"`
}

type matchResponse struct {
	Match bool `json:"match"`
}

type generateResponse struct {
	Secret string `json:"secret"`
	Length int    `json:"length"`
}

type weakSecretResponse struct {
	Error      apiError                  `json:"error"`
	Validation password.ValidationResult `json:"validation"`
}
