package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"

	"github.com/moodlens/moodlens-backend/internal/repository"
	"github.com/moodlens/moodlens-backend/internal/services"
)

// LiveSession streams session updates over a websocket. The current state is
// sent first when the session already exists.
func LiveSession(svc *services.Services, logger *logrus.Logger) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		sessionID := c.Params("id")
		log := logger.WithField("session_id", sessionID)

		updates, unsubscribe := svc.Hub.Subscribe(sessionID)
		defer unsubscribe()

		initial, err := svc.Emotions.Live(context.Background(), sessionID)
		switch {
		case err == nil:
			if err := c.WriteJSON(initial); err != nil {
				return
			}
		case !errors.Is(err, repository.ErrNotFound):
			log.WithError(err).Warn("Failed to load live session")
		}

		// The reader only watches for the client going away
		closed := make(chan struct{})
		go func() {
			defer close(closed)
			for {
				if _, _, err := c.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case u, ok := <-updates:
				if !ok {
					return
				}
				if err := c.WriteJSON(u); err != nil {
					log.WithError(err).Debug("Live subscriber went away")
					return
				}
			case <-closed:
				return
			}
		}
	}
}
