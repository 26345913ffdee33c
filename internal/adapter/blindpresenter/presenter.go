package blindpresenter

import (
	"context"
	"encoding/base64"
	"strings"
)

// SendFunc delivers one payload to a room.
type SendFunc func(ctx context.Context, room, payload string) error

// Presenter delivers formatted messages and board images without coupling to the command layer.
type Presenter struct {
	sendMessage SendFunc
	sendImage   SendFunc
}

func NewPresenter(sendMessage, sendImage SendFunc) *Presenter {
	return &Presenter{sendMessage: sendMessage, sendImage: sendImage}
}

func (p *Presenter) Text(ctx context.Context, room, message string) error {
	if p == nil || p.sendMessage == nil || strings.TrimSpace(message) == "" {
		return nil
	}
	return p.sendMessage(ctx, room, message)
}

// Board sends message (if any) followed by the PNG as base64.
func (p *Presenter) Board(ctx context.Context, room, message string, png []byte) error {
	if p == nil {
		return nil
	}
	if err := p.Text(ctx, room, message); err != nil {
		return err
	}
	if len(png) > 0 && p.sendImage != nil {
		return p.sendImage(ctx, room, base64.StdEncoding.EncodeToString(png))
	}
	return nil
}
