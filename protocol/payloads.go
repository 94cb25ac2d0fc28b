package protocol

import "fmt"

// Payload is the typed body of one message type.
type Payload interface {
	// MsgType returns the header type the payload is sent under.
	MsgType() MsgType
	encode(b *Builder)
	decode(r *Reader)
}

// Marshal encodes p as a complete message.
func Marshal(p Payload) []byte {
	b := NewBuilder(p.MsgType())
	p.encode(b)
	return b.Bytes()
}

// Unmarshal decodes m into p. The message type must match p.
//
// Parameters:
//   - m: A message produced by Decode
//   - p: Pointer to the payload struct to fill
//
// Returns:
//   - A *ProtocolError when the type differs or fields are malformed
func Unmarshal(m Message, p Payload) error {
	if st, ok := p.(*Status); ok && m.Type.IsStatus() {
		st.Type = m.Type
	}

	if m.Type != p.MsgType() {
		return &ProtocolError{
			Kind:   UnexpectedType,
			Type:   m.Type,
			Detail: fmt.Sprintf("want %s", p.MsgType()),
		}
	}

	r := NewReader(m)
	p.decode(r)
	return r.Finish()
}

// Login is sent by a client to authenticate.
type Login struct {
	User     string
	Password string
	Version  string
}

func (*Login) MsgType() MsgType { return MsgLogin }
func (p *Login) encode(b *Builder) {
	b.String(p.User).String(p.Password).String(p.Version)
}
func (p *Login) decode(r *Reader) {
	p.User, p.Password, p.Version = r.String(), r.String(), r.String()
}

// Hello confirms a successful login.
type Hello struct {
	User string
}

func (*Hello) MsgType() MsgType { return MsgHello }
func (p *Hello) encode(b *Builder) { b.String(p.User) }
func (p *Hello) decode(r *Reader) { p.User = r.String() }

// Denied rejects the last message.
type Denied struct {
	Reason string
}

func (*Denied) MsgType() MsgType { return MsgDenied }
func (p *Denied) encode(b *Builder) { b.String(p.Reason) }
func (p *Denied) decode(r *Reader) { p.Reason = r.String() }

// Goodbye ends a connection from either side.
type Goodbye struct {
	Reason string
}

func (*Goodbye) MsgType() MsgType { return MsgGoodbye }
func (p *Goodbye) encode(b *Builder) { b.String(p.Reason) }
func (p *Goodbye) decode(r *Reader) { p.Reason = r.String() }

// Ping is a liveness probe; the server answers with a Ping.
type Ping struct{}

func (*Ping) MsgType() MsgType { return MsgPing }
func (*Ping) encode(*Builder) {}
func (*Ping) decode(*Reader) {}

// PlayerNew announces a logged-in player.
type PlayerNew struct {
	User string
}

func (*PlayerNew) MsgType() MsgType { return MsgPlayerNew }
func (p *PlayerNew) encode(b *Builder) { b.String(p.User) }
func (p *PlayerNew) decode(r *Reader) { p.User = r.String() }

// PlayerLeft announces a departed player.
type PlayerLeft struct {
	User string
}

func (*PlayerLeft) MsgType() MsgType { return MsgPlayerLeft }
func (p *PlayerLeft) encode(b *Builder) { b.String(p.User) }
func (p *PlayerLeft) decode(r *Reader) { p.User = r.String() }

// OpenGame describes a session in the lobby listing.
type OpenGame struct {
	SessionID   int32
	Description string
	Owner       string
	Seats       int32
	Status      int32
	HasPassword bool
}

func (*OpenGame) MsgType() MsgType { return MsgOpenGame }
func (p *OpenGame) encode(b *Builder) {
	b.Int(p.SessionID).String(p.Description).String(p.Owner).Int(p.Seats).Int(p.Status).Bool(p.HasPassword)
}
func (p *OpenGame) decode(r *Reader) {
	p.SessionID = r.Int()
	p.Description = r.String()
	p.Owner = r.String()
	p.Seats = r.Int()
	p.Status = r.Int()
	p.HasPassword = r.Bool()
}

// GamePlayer describes one seat of a session.
type GamePlayer struct {
	SessionID int32
	Seat      int32
	Name      string
	Kind      int32
}

func (*GamePlayer) MsgType() MsgType { return MsgGamePlayer }
func (p *GamePlayer) encode(b *Builder) {
	b.Int(p.SessionID).Int(p.Seat).String(p.Name).Int(p.Kind)
}
func (p *GamePlayer) decode(r *Reader) {
	p.SessionID, p.Seat, p.Name, p.Kind = r.Int(), r.Int(), r.String(), r.Int()
}

// CloseGame removes a session from the listing.
type CloseGame struct {
	SessionID int32
}

func (*CloseGame) MsgType() MsgType { return MsgCloseGame }
func (p *CloseGame) encode(b *Builder) { b.Int(p.SessionID) }
func (p *CloseGame) decode(r *Reader) { p.SessionID = r.Int() }

// Join asks for a seat in a session.
type Join struct {
	SessionID int32
	Password  string
}

func (*Join) MsgType() MsgType { return MsgJoin }
func (p *Join) encode(b *Builder) { b.Int(p.SessionID).String(p.Password) }
func (p *Join) decode(r *Reader) { p.SessionID, p.Password = r.Int(), r.String() }

// Leave gives up a seat in an open session. The server also sends it to a
// player removed by the session owner.
type Leave struct {
	SessionID int32
}

func (*Leave) MsgType() MsgType { return MsgLeave }
func (p *Leave) encode(b *Builder) { b.Int(p.SessionID) }
func (p *Leave) decode(r *Reader) { p.SessionID = r.Int() }

// JoinAck confirms a seat assignment.
type JoinAck struct {
	SessionID int32
	Seat      int32
}

func (*JoinAck) MsgType() MsgType { return MsgJoinAck }
func (p *JoinAck) encode(b *Builder) { b.Int(p.SessionID).Int(p.Seat) }
func (p *JoinAck) decode(r *Reader) { p.SessionID, p.Seat = r.Int(), r.Int() }

// JoinNak refuses a seat assignment.
type JoinNak struct {
	SessionID int32
	Reason    string
}

func (*JoinNak) MsgType() MsgType { return MsgJoinNak }
func (p *JoinNak) encode(b *Builder) { b.Int(p.SessionID).String(p.Reason) }
func (p *JoinNak) decode(r *Reader) { p.SessionID, p.Reason = r.Int(), r.String() }

// Create opens a new session owned by the sender.
type Create struct {
	Description string
	Password    string
	Seats       int32
}

func (*Create) MsgType() MsgType { return MsgCreate }
func (p *Create) encode(b *Builder) {
	b.String(p.Description).String(p.Password).Int(p.Seats)
}
func (p *Create) decode(r *Reader) {
	p.Description, p.Password, p.Seats = r.String(), r.String(), r.Int()
}

// Start requests (client) or announces (server) the start of a session.
// Seat is the receiver's seat index and is ignored on requests.
type Start struct {
	SessionID int32
	Seat      int32
}

func (*Start) MsgType() MsgType { return MsgStart }
func (p *Start) encode(b *Builder) { b.Int(p.SessionID).Int(p.Seat) }
func (p *Start) decode(r *Reader) { p.SessionID, p.Seat = r.Int(), r.Int() }

// Remove lets the session owner free a seat.
type Remove struct {
	SessionID int32
	Name      string
}

func (*Remove) MsgType() MsgType { return MsgRemove }
func (p *Remove) encode(b *Builder) { b.Int(p.SessionID).String(p.Name) }
func (p *Remove) decode(r *Reader) { p.SessionID, p.Name = r.Int(), r.String() }

// Resign abandons a started game.
type Resign struct {
	SessionID int32
}

func (*Resign) MsgType() MsgType { return MsgResign }
func (p *Resign) encode(b *Builder) { b.Int(p.SessionID) }
func (p *Resign) decode(r *Reader) { p.SessionID = r.Int() }

// AddAI fills the next empty seat with a computer player.
type AddAI struct {
	SessionID int32
}

func (*AddAI) MsgType() MsgType { return MsgAddAI }
func (p *AddAI) encode(b *Builder) { b.Int(p.SessionID) }
func (p *AddAI) decode(r *Reader) { p.SessionID = r.Int() }

// CardPlayedText is the Status text of a STATUS_CARD that reports a card
// being played: Subject is the card and Values holds the seat.
const CardPlayedText = "card-played"

// Status carries one engine status update under any STATUS_* type.
type Status struct {
	Type    MsgType
	Subject int32
	Values  []int32
	Text    string
}

func (p *Status) MsgType() MsgType {
	if p.Type.IsStatus() {
		return p.Type
	}

	return MsgStatusMisc
}
func (p *Status) encode(b *Builder) { b.Int(p.Subject).Ints(p.Values).String(p.Text) }
func (p *Status) decode(r *Reader) {
	p.Subject, p.Values, p.Text = r.Int(), r.Ints(), r.String()
}

// Log is a public game log line.
type Log struct {
	Text string
}

func (*Log) MsgType() MsgType { return MsgLog }
func (p *Log) encode(b *Builder) { b.String(p.Text) }
func (p *Log) decode(r *Reader) { p.Text = r.String() }

// LogFormat is a private message to one player with a presentation tag;
// an empty tag means plain text.
type LogFormat struct {
	Text string
	Tag  string
}

func (*LogFormat) MsgType() MsgType { return MsgLogFormat }
func (p *LogFormat) encode(b *Builder) { b.String(p.Text).String(p.Tag) }
func (p *LogFormat) decode(r *Reader) { p.Text, p.Tag = r.String(), r.String() }

// Chat is a lobby-wide chat line. From is filled in by the server.
type Chat struct {
	From string
	Text string
}

func (*Chat) MsgType() MsgType { return MsgChat }
func (p *Chat) encode(b *Builder) { b.String(p.From).String(p.Text) }
func (p *Chat) decode(r *Reader) { p.From, p.Text = r.String(), r.String() }

// Waiting lists the wait-state of every seat, in seat order.
type Waiting struct {
	States []int32
}

func (*Waiting) MsgType() MsgType { return MsgWaiting }
func (p *Waiting) encode(b *Builder) { b.Ints(p.States) }
func (p *Waiting) decode(r *Reader) { p.States = r.Ints() }

// Seat tells a client its player index after seats are renumbered.
type Seat struct {
	Index int32
}

func (*Seat) MsgType() MsgType { return MsgSeat }
func (p *Seat) encode(b *Builder) { b.Int(p.Index) }
func (p *Seat) decode(r *Reader) { p.Index = r.Int() }

// GameChat is a chat line scoped to one session.
type GameChat struct {
	SessionID int32
	From      string
	Text      string
}

func (*GameChat) MsgType() MsgType { return MsgGameChat }
func (p *GameChat) encode(b *Builder) {
	b.Int(p.SessionID).String(p.From).String(p.Text)
}
func (p *GameChat) decode(r *Reader) {
	p.SessionID, p.From, p.Text = r.Int(), r.String(), r.String()
}

// Choose asks a client for a decision.
type Choose struct {
	RequestID  int32
	Kind       int32
	Candidates []int32
	Specials   []int32
	Arg1       int32
	Arg2       int32
	Arg3       int32
	Optional   bool
}

func (*Choose) MsgType() MsgType { return MsgChoose }
func (p *Choose) encode(b *Builder) {
	b.Int(p.RequestID).Int(p.Kind).Ints(p.Candidates).Ints(p.Specials).
		Int(p.Arg1).Int(p.Arg2).Int(p.Arg3).Bool(p.Optional)
}
func (p *Choose) decode(r *Reader) {
	p.RequestID = r.Int()
	p.Kind = r.Int()
	p.Candidates = r.Ints()
	p.Specials = r.Ints()
	p.Arg1, p.Arg2, p.Arg3 = r.Int(), r.Int(), r.Int()
	p.Optional = r.Bool()
}

// Prepare answers a Choose with the same request id.
type Prepare struct {
	RequestID int32
	Selected  []int32
	Specials  []int32
}

func (*Prepare) MsgType() MsgType { return MsgPrepare }
func (p *Prepare) encode(b *Builder) {
	b.Int(p.RequestID).Ints(p.Selected).Ints(p.Specials)
}
func (p *Prepare) decode(r *Reader) {
	p.RequestID, p.Selected, p.Specials = r.Int(), r.Ints(), r.Ints()
}

// GameOver ends a session. Finished is false when the game was aborted.
type GameOver struct {
	SessionID int32
	Finished  bool
}

func (*GameOver) MsgType() MsgType { return MsgGameOver }
func (p *GameOver) encode(b *Builder) { b.Int(p.SessionID).Bool(p.Finished) }
func (p *GameOver) decode(r *Reader) { p.SessionID, p.Finished = r.Int(), r.Bool() }

// NewPayload returns an empty payload for t, or nil when t is unknown.
func NewPayload(t MsgType) Payload {
	switch t {
	case MsgLogin:
		return &Login{}
	case MsgHello:
		return &Hello{}
	case MsgDenied:
		return &Denied{}
	case MsgGoodbye:
		return &Goodbye{}
	case MsgPing:
		return &Ping{}
	case MsgPlayerNew:
		return &PlayerNew{}
	case MsgPlayerLeft:
		return &PlayerLeft{}
	case MsgOpenGame:
		return &OpenGame{}
	case MsgGamePlayer:
		return &GamePlayer{}
	case MsgCloseGame:
		return &CloseGame{}
	case MsgJoin:
		return &Join{}
	case MsgLeave:
		return &Leave{}
	case MsgJoinAck:
		return &JoinAck{}
	case MsgJoinNak:
		return &JoinNak{}
	case MsgCreate:
		return &Create{}
	case MsgStart:
		return &Start{}
	case MsgRemove:
		return &Remove{}
	case MsgResign:
		return &Resign{}
	case MsgAddAI:
		return &AddAI{}
	case MsgStatusMeta, MsgStatusPlayer, MsgStatusCard, MsgStatusGoal, MsgStatusMisc:
		return &Status{Type: t}
	case MsgLog:
		return &Log{}
	case MsgChat:
		return &Chat{}
	case MsgWaiting:
		return &Waiting{}
	case MsgSeat:
		return &Seat{}
	case MsgGameChat:
		return &GameChat{}
	case MsgLogFormat:
		return &LogFormat{}
	case MsgChoose:
		return &Choose{}
	case MsgPrepare:
		return &Prepare{}
	case MsgGameOver:
		return &GameOver{}
	default:
		return nil
	}
}
