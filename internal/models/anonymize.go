package models

// Request and Response structs for the anonymization API
// The request structs must be structs with fields for the request path/query/header/cookie parameters and/or body.
// The response structs must be structs with fields for the output headers and body of the operation, if any.

// TextRequest is the body of an anonymization request.
type TextRequest struct {
	_    struct{} `json:"-" additionalProperties:"true"`
	Text string   `json:"text" example:"Contact John Doe at john@example.com" doc:"Text to scrub"`
}

// TextResponse is the body of every successful response.
type TextResponse struct {
	AnonymizedText string `json:"anonymizedText" example:"Contact {{NAME}} at {{EMAIL}}" doc:"Text with PII replaced by placeholders"`
}

// Anonymize text
// POST Path: "/anonymize"

type AnonymizeRequest struct {
	Body TextRequest
}

type AnonymizeResponse struct {
	Body TextResponse
}

// Liveness
// GET Path: "/"

type HelloRequest struct{}

type HelloResponse struct {
	Body TextResponse
}
