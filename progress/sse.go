package progress

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const keepAliveInterval = 15 * time.Second

// Handler streams broker events to one client as server-sent events until
// the client disconnects.
func (b *Broker) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rc := http.NewResponseController(w)

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		if err := rc.Flush(); err != nil {
			b.logger.Warn("progress stream cannot flush", zap.Error(err))
			return
		}

		sub := b.Subscribe()
		defer b.Unsubscribe(sub.ID)

		ticker := time.NewTicker(keepAliveInterval)
		defer ticker.Stop()

		for {
			select {
			case <-r.Context().Done():
				return
			case <-ticker.C:
				if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
					return
				}
			case ev, ok := <-sub.Events:
				if !ok {
					return
				}
				if err := writeEvent(w, ev); err != nil {
					b.logger.Debug("progress stream closed", zap.Error(err))
					return
				}
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	})
}

func writeEvent(w http.ResponseWriter, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}
