package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
)

const (
	wsWriteWait  = 5 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 50 * time.Second
	wsBacklog    = 50
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4 * 1024,
	WriteBufferSize: 16 * 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// handleEvents streams world events over a websocket. Query parameters:
// location limits the feed to one location, after replays missed events
// newer than that id before going live.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	player, err := playerFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error(), nil)
		return
	}
	if s.hub == nil {
		writeError(w, http.StatusServiceUnavailable, "event feed disabled", nil)
		return
	}
	location, _ := strconv.ParseInt(r.URL.Query().Get("location"), 10, 64)
	after, _ := strconv.ParseInt(r.URL.Query().Get("after"), 10, 64)

	// Subscribe before reading the backlog so nothing falls in between;
	// live copies of backlog events are skipped by id below.
	sub := s.hub.Subscribe(location, 64)
	defer s.hub.Unsubscribe(sub)

	backlog, err := s.game.RecentEvents(r.Context(), after, location, wsBacklog)
	if err != nil {
		writeDomainError(w, s.log, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	s.log.Debug("event feed connected", "player_id", player.PlayerID, "location", location)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Reader: only control frames matter, but reading is what processes them.
	go func() {
		defer cancel()
		conn.SetReadLimit(1024)
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	var lastID int64
	for _, ev := range backlog {
		if ev.ID > lastID {
			lastID = ev.ID
		}
		b, err := json.Marshal(ev)
		if err != nil {
			continue
		}
		if err := writeWS(conn, websocket.TextMessage, b); err != nil {
			return
		}
	}

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			return
		case b, ok := <-sub.C:
			if !ok {
				return
			}
			if seenInBacklog(b, lastID) {
				continue
			}
			if err := writeWS(conn, websocket.TextMessage, b); err != nil {
				return
			}
		case <-ping.C:
			if err := writeWS(conn, websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// seenInBacklog reports whether a live payload repeats an event already
// replayed from the backlog. Payloads without an id (resync) always pass.
func seenInBacklog(payload []byte, lastID int64) bool {
	if lastID == 0 {
		return false
	}
	var head struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal(payload, &head); err != nil || head.ID == 0 {
		return false
	}
	return head.ID <= lastID
}

func writeWS(conn *websocket.Conn, kind int, b []byte) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteMessage(kind, b)
}
