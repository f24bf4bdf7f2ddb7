package oauthmodel

import "errors"

var (
	ErrInvalidCodeChallenge       = errors.New("invalid code challenge")
	ErrInvalidCodeChallengeMethod = errors.New("invalid code challenge method")
	ErrInvalidResponseType        = errors.New("unsupported response type")
	ErrUnsupportedGrantType       = errors.New("unsupported grant type")
	ErrMissingClientID            = errors.New("client_id is required")
	ErrMissingCode                = errors.New("authorization code is required")
)
