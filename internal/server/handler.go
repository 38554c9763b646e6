// Package server is the HTTP/websocket front door: lobby endpoints for
// creating, joining, and starting rooms, and a websocket per player for
// in-game commands and state pushes.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/cluefall/cluefall/internal/game"
	"github.com/cluefall/cluefall/internal/rooms"
)

const birthdateLayout = "2006-01-02"

const eventError game.EventType = "error"

// Server bundles the mux, the lobby, and the connection registry.
type Server struct {
	manager  *rooms.Manager
	registry *Registry
	log      logrus.FieldLogger
	mux      *http.ServeMux
}

// New builds the handler tree.
func New(manager *rooms.Manager, registry *Registry, log logrus.FieldLogger) *Server {
	s := &Server{
		manager:  manager,
		registry: registry,
		log:      log,
		mux:      http.NewServeMux(),
	}
	s.mux.HandleFunc("POST /rooms", s.handleCreateRoom)
	s.mux.HandleFunc("POST /rooms/{id}/join", s.handleJoinRoom)
	s.mux.HandleFunc("POST /rooms/{id}/start", s.handleStartRoom)
	s.mux.HandleFunc("GET /rooms/{id}", s.handleGetRoom)
	s.mux.HandleFunc("GET /ws", s.handleWS)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

type seatPayload struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Birthdate string    `json:"birthdate"`
}

func (p seatPayload) seat() (game.Seat, error) {
	bd, err := time.Parse(birthdateLayout, p.Birthdate)
	if err != nil {
		return game.Seat{}, err
	}
	id := p.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	return game.Seat{ID: id, Name: p.Name, Birthdate: bd}, nil
}

type roomPayload struct {
	ID      uuid.UUID    `json:"id"`
	Name    string       `json:"name"`
	Host    uuid.UUID    `json:"host"`
	Status  rooms.Status `json:"status"`
	Players []uuid.UUID  `json:"players"`
}

func roomResponse(r *rooms.Room) roomPayload {
	out := roomPayload{ID: r.ID, Name: r.Name, Host: r.Host, Status: r.Status}
	for _, s := range r.Seats {
		out.Players = append(out.Players, s.ID)
	}
	return out
}

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string      `json:"name"`
		Host seatPayload `json:"host"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "bad_request")
		return
	}
	host, err := req.Host.seat()
	if err != nil || req.Host.Name == "" {
		s.writeError(w, http.StatusBadRequest, "bad_seat")
		return
	}
	room := s.manager.Create(req.Name, host)
	s.writeJSON(w, http.StatusCreated, roomResponse(room))
}

func (s *Server) handleJoinRoom(w http.ResponseWriter, r *http.Request) {
	roomID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "bad_room_id")
		return
	}
	var req seatPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "bad_request")
		return
	}
	seat, err := req.seat()
	if err != nil || req.Name == "" {
		s.writeError(w, http.StatusBadRequest, "bad_seat")
		return
	}
	room, err := s.manager.Join(roomID, seat)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, roomResponse(room))
}

func (s *Server) handleStartRoom(w http.ResponseWriter, r *http.Request) {
	roomID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "bad_room_id")
		return
	}
	var req struct {
		PlayerID uuid.UUID `json:"playerId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "bad_request")
		return
	}
	match, err := s.manager.Start(r.Context(), roomID, req.PlayerID)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"gameId":     match.ID,
		"turnHolder": match.TurnHolder(),
	})
}

func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	roomID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "bad_room_id")
		return
	}
	room, err := s.manager.Room(roomID)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, roomResponse(room))
}

// handleWS upgrades the connection and pumps commands until the socket
// drops. State pushes travel the other way through the registry.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	roomID, err := uuid.Parse(r.URL.Query().Get("room"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "bad_room_id")
		return
	}
	playerID, err := uuid.Parse(r.URL.Query().Get("player"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "bad_player_id")
		return
	}
	if _, err := s.manager.Room(roomID); err != nil {
		s.writeEngineError(w, err)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.log.WithError(err).Debug("websocket accept failed")
		return
	}
	sink := &wsSink{conn: conn}
	s.registry.Attach(roomID, playerID, sink)
	if match, err := s.manager.Match(roomID); err == nil {
		match.SetConnected(playerID, true)
		s.registry.SendTo(roomID, playerID, game.Event{Type: game.EventGameState, Public: ptr(match.PublicView())})
		priv := match.PrivateView(playerID)
		s.registry.SendTo(roomID, playerID, game.Event{Type: game.EventPrivateState, Private: &priv})
	}

	defer func() {
		s.registry.Detach(roomID, playerID, sink)
		if match, err := s.manager.Match(roomID); err == nil {
			match.SetConnected(playerID, false)
		}
		_ = sink.Close()
	}()

	ctx := r.Context()
	for {
		_, payload, err := conn.Read(ctx)
		if err != nil {
			return
		}
		var cmd Command
		if err := json.Unmarshal(payload, &cmd); err != nil {
			s.registry.SendTo(roomID, playerID, errorEvent("conflict", "bad_command"))
			continue
		}
		if err := s.dispatch(ctx, roomID, playerID, cmd); err != nil {
			s.registry.SendTo(roomID, playerID, errorEventFrom(err))
			continue
		}
		s.manager.SettleIfOver(ctx, roomID)
	}
}

// Command is the flat inbound envelope. Fields beyond Type are read per
// command kind; extras are ignored.
type Command struct {
	Type      string      `json:"type"`
	Cards     []uuid.UUID `json:"cards,omitempty"`
	Card      uuid.UUID   `json:"card,omitempty"`
	Target    uuid.UUID   `json:"target,omitempty"`
	Recipient uuid.UUID   `json:"recipient,omitempty"`
	ActionID  int         `json:"actionId,omitempty"`
	Set       int         `json:"set,omitempty"`
	Count     int         `json:"count,omitempty"`
	Ordered   []uuid.UUID `json:"ordered,omitempty"`
}

// dispatch routes one command to the room's match.
func (s *Server) dispatch(ctx context.Context, roomID, playerID uuid.UUID, cmd Command) error {
	match, err := s.manager.Match(roomID)
	if err != nil {
		return err
	}
	switch cmd.Type {
	case "discard":
		return match.Discard(ctx, playerID, cmd.Cards)
	case "take_deck":
		count := cmd.Count
		if count == 0 {
			count = 1
		}
		_, err := match.TakeFromDeck(ctx, playerID, count)
		return err
	case "take_draft":
		return match.TakeFromDraft(ctx, playerID, cmd.Card)
	case "skip_turn":
		return match.SkipTurn(ctx, playerID)
	case "finish_turn":
		return match.FinishTurn(ctx, playerID)
	case "play_detective_set":
		_, err := match.PlayDetectiveSet(ctx, playerID, cmd.Cards, cmd.Target)
		return err
	case "add_detective":
		_, err := match.AddDetective(ctx, playerID, cmd.Card, cmd.Set, cmd.Target)
		return err
	case "resolve_detective":
		return match.ResolveDetective(ctx, playerID, cmd.ActionID, cmd.Card)
	case "play_ashes":
		_, _, err := match.PlayLookIntoAshes(ctx, playerID, cmd.Card)
		return err
	case "pick_ashes":
		return match.PickFromAshes(ctx, playerID, cmd.ActionID, cmd.Card)
	case "play_delay":
		count := cmd.Count
		if count == 0 {
			count = game.EscapeDelayCards
		}
		_, _, err := match.PlayEscapeDelay(ctx, playerID, cmd.Card, count)
		return err
	case "order_delay":
		return match.OrderEscapeDelay(ctx, playerID, cmd.ActionID, cmd.Ordered)
	case "play_one_more":
		_, _, err := match.PlayOneMore(ctx, playerID, cmd.Card)
		return err
	case "pick_one_more":
		_, err := match.PickOneMoreSecret(ctx, playerID, cmd.ActionID, cmd.Card)
		return err
	case "assign_one_more":
		return match.AssignOneMoreSecret(ctx, playerID, cmd.ActionID, cmd.Recipient)
	case "steal_set":
		return match.StealSet(ctx, playerID, cmd.Card, cmd.Target, cmd.Set)
	case "sweep_table":
		return match.SweepTable(ctx, playerID, cmd.Card, cmd.Target)
	}
	return &game.Error{Code: game.CodeConflict, Reason: "unknown_command"}
}

func errorEvent(code, reason string) game.Event {
	return game.Event{
		Type:    eventError,
		Payload: map[string]interface{}{"code": code, "reason": reason},
	}
}

func errorEventFrom(err error) game.Event {
	var ge *game.Error
	if errors.As(err, &ge) {
		return errorEvent(string(ge.Code), ge.Reason)
	}
	return errorEvent("internal", err.Error())
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.WithError(err).Debug("response encode failed")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, reason string) {
	s.writeJSON(w, status, map[string]string{"error": reason})
}

// writeEngineError maps the engine's error taxonomy onto HTTP statuses.
func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	var ge *game.Error
	if !errors.As(err, &ge) {
		s.writeError(w, http.StatusInternalServerError, "internal")
		return
	}
	status := http.StatusConflict
	switch ge.Code {
	case game.CodeNotFound:
		status = http.StatusNotFound
	case game.CodeForbidden:
		status = http.StatusForbidden
	case game.CodeExpired:
		status = http.StatusGone
	}
	s.writeError(w, status, ge.Reason)
}

func ptr[T any](v T) *T { return &v }

// wsSink adapts a live websocket to the registry's Sink.
type wsSink struct {
	conn *websocket.Conn
}

func (s *wsSink) Send(ctx context.Context, payload []byte) error {
	return s.conn.Write(ctx, websocket.MessageText, payload)
}

func (s *wsSink) Close() error {
	return s.conn.Close(websocket.StatusNormalClosure, "")
}
