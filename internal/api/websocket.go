package api

import (
	"net/http"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// statusStream upgrades the request to a websocket, sends the current
// status immediately and then every subsequent change as a JSON frame.
func (a *API) statusStream(w http.ResponseWriter, r *http.Request) {
	id, updates, err := a.bc.Subscribe()
	if err != nil {
		a.writeJSON(w, r, http.StatusServiceUnavailable, Error{Error: err.Error()})
		return
	}
	defer a.bc.Unsubscribe(id)

	con, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.log.WithError(err).Warn("Failed to upgrade status stream request.")
		return
	}
	defer func() {
		if err := con.Close(); err != nil {
			a.log.WithError(err).Debug("Failed to close status stream socket.")
		}
	}()

	if err := con.WriteJSON(statusResponse(a.bc.Current())); err != nil {
		a.log.WithError(err).Debug("Status stream client went away.")
		return
	}

	for {
		select {
		case status, ok := <-updates:
			if !ok {
				return
			}
			if err := con.WriteJSON(statusResponse(status)); err != nil {
				a.log.WithError(err).Debug("Status stream client went away.")
				return
			}
		case <-r.Context().Done():
			return
		}
	}
}
