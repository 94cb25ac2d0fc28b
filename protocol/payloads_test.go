package protocol

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roundTrip(t *testing.T, p Payload) Payload {
	t.Helper()

	raw := Marshal(p)
	msg, consumed, err := Decode(raw, math.MaxUint32)
	require.NoError(t, err)
	require.Equal(t, len(raw), consumed)
	require.Equal(t, p.MsgType(), msg.Type)

	got := NewPayload(msg.Type)
	require.NotNil(t, got)
	require.NoError(t, Unmarshal(msg, got))
	return got
}

func TestPayloadRoundTrip(t *testing.T) {
	long := strings.Repeat("g", ChunkSize*3)

	cases := []Payload{
		&Login{User: "alice", Password: "", Version: "0.9.5"},
		&Hello{User: "alice"},
		&Denied{Reason: "invalid state"},
		&Goodbye{},
		&Ping{},
		&PlayerNew{User: "bob"},
		&PlayerLeft{User: "bob"},
		&OpenGame{SessionID: 1, Description: "Fast game", Owner: "alice", Seats: 4, Status: 1, HasPassword: true},
		&GamePlayer{SessionID: 1, Seat: 0, Name: "alice", Kind: 1},
		&CloseGame{SessionID: math.MaxInt32},
		&Join{SessionID: 2, Password: "secret"},
		&Leave{SessionID: 2},
		&JoinAck{SessionID: 2, Seat: 5},
		&JoinNak{SessionID: 2, Reason: "session full"},
		&Create{Description: long, Password: "", Seats: 2},
		&Start{SessionID: 3, Seat: -1},
		&Remove{SessionID: 3, Name: "carol"},
		&Resign{SessionID: 3},
		&AddAI{SessionID: 3},
		&Status{Type: MsgStatusMeta, Subject: -1, Values: []int32{0, math.MinInt32, math.MaxInt32}, Text: ""},
		&Status{Type: MsgStatusPlayer, Subject: 1, Values: nil, Text: "alice"},
		&Status{Type: MsgStatusCard, Subject: 17, Values: []int32{2}},
		&Status{Type: MsgStatusGoal, Subject: 4, Values: []int32{1, 0}},
		&Status{Type: MsgStatusMisc, Text: "phase 3"},
		&Log{Text: long},
		&Chat{From: "", Text: "gl hf"},
		&Waiting{States: []int32{0, 1, 2}},
		&Seat{Index: 0},
		&GameChat{SessionID: 9, From: "alice", Text: "ü ñ 日本"},
		&LogFormat{Text: "Phase 1", Tag: "phase"},
		&Choose{RequestID: 7, Kind: 2, Candidates: []int32{4, 5, 6}, Specials: nil, Arg1: -1, Arg2: 0, Arg3: 3, Optional: true},
		&Prepare{RequestID: 7, Selected: []int32{5}, Specials: []int32{-1}},
		&GameOver{SessionID: 9, Finished: true},
	}

	for _, p := range cases {
		p := p
		t.Run(p.MsgType().String(), func(t *testing.T) {
			assert.Equal(t, p, roundTrip(t, p))
		})
	}
}

func TestEveryTypeHasPayload(t *testing.T) {
	for _, mt := range MsgTypes() {
		p := NewPayload(mt)
		require.NotNil(t, p, mt.String())
		assert.Equal(t, mt, p.MsgType())
	}

	assert.Nil(t, NewPayload(MsgType(12)))
}

func TestUnmarshal(t *testing.T) {
	t.Run("type mismatch is rejected", func(t *testing.T) {
		raw := Marshal(&Hello{User: "x"})
		msg, _, err := Decode(raw, DefaultMaxPayload)
		require.NoError(t, err)

		err = Unmarshal(msg, &Denied{})
		assert.True(t, IsKind(err, UnexpectedType))
	})

	t.Run("status decodes under any status type", func(t *testing.T) {
		raw := Marshal(&Status{Type: MsgStatusGoal, Subject: 2})
		msg, _, err := Decode(raw, DefaultMaxPayload)
		require.NoError(t, err)

		var st Status
		require.NoError(t, Unmarshal(msg, &st))
		assert.Equal(t, MsgStatusGoal, st.Type)
		assert.Equal(t, int32(2), st.Subject)
	})

	t.Run("status does not accept other types", func(t *testing.T) {
		raw := Marshal(&Log{Text: "x"})
		msg, _, err := Decode(raw, DefaultMaxPayload)
		require.NoError(t, err)

		assert.Error(t, Unmarshal(msg, &Status{}))
	})

	t.Run("truncated payload is malformed", func(t *testing.T) {
		msg := Message{Type: MsgJoin, Payload: []byte{0, 0, 0, 1}}
		assert.True(t, IsKind(Unmarshal(msg, &Join{}), Malformed))
	})
}
