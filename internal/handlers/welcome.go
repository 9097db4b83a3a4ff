package handlers

import "context"

// WelcomeMessage is served at the root path.
const WelcomeMessage = "Welcome to EQ Works 😊!"

// WelcomeResponse is a plain text greeting.
type WelcomeResponse struct {
	ContentType string `header:"Content-Type"`
	Body        []byte
}

func Welcome(_ context.Context, _ *struct{}) (*WelcomeResponse, error) {
	return &WelcomeResponse{
		ContentType: "text/html; charset=utf-8",
		Body:        []byte(WelcomeMessage),
	}, nil
}
