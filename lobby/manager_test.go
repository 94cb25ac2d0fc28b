package lobby

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice = Member{ConnID: 1, Name: "alice"}
	bob   = Member{ConnID: 2, Name: "bob"}
	carol = Member{ConnID: 3, Name: "carol"}
)

func newTwoSeat(t *testing.T) (*Manager, *Session) {
	t.Helper()

	m := NewManager(DefaultConfig())
	s, err := m.Create(alice, "quick game", "", 2)
	require.NoError(t, err)
	return m, s
}

func TestManager_Create(t *testing.T) {
	t.Run("seats the owner first", func(t *testing.T) {
		m, s := newTwoSeat(t)

		assert.Equal(t, StatusOpen, s.Status)
		assert.Equal(t, Seat{Kind: SeatHuman, ConnID: 1, Name: "alice"}, s.Seats[0])
		assert.Equal(t, SeatEmpty, s.Seats[1].Kind)
		assert.False(t, s.HasPassword())

		got, seat, ok := m.SeatOf(alice.ConnID)
		require.True(t, ok)
		assert.Same(t, s, got)
		assert.Equal(t, 0, seat)
	})

	t.Run("rejects seat counts outside the bounds", func(t *testing.T) {
		m := NewManager(DefaultConfig())
		_, err := m.Create(alice, "", "", 1)
		assert.ErrorIs(t, err, ErrInvalidState)
		_, err = m.Create(alice, "", "", 7)
		assert.ErrorIs(t, err, ErrInvalidState)
		assert.Equal(t, 0, m.Len())
	})

	t.Run("a seated connection cannot create another", func(t *testing.T) {
		m, _ := newTwoSeat(t)
		_, err := m.Create(alice, "", "", 2)
		assert.ErrorIs(t, err, ErrAlreadySeated)
	})
}

func TestManager_Join(t *testing.T) {
	t.Run("takes the first empty seat", func(t *testing.T) {
		m, s := newTwoSeat(t)

		got, seat, err := m.Join(s.ID, bob, "")
		require.NoError(t, err)
		assert.Same(t, s, got)
		assert.Equal(t, 1, seat)
		assert.True(t, s.Filled())
		assert.Equal(t, []int32{1, 2}, s.Connections())
	})

	t.Run("full and closed sessions fail without mutation", func(t *testing.T) {
		m, s := newTwoSeat(t)
		_, _, err := m.Join(s.ID, bob, "")
		require.NoError(t, err)

		before := append([]Seat(nil), s.Seats...)
		_, _, err = m.Join(s.ID, carol, "")
		assert.ErrorIs(t, err, ErrFull)
		assert.Equal(t, before, s.Seats)

		_, err = m.Start(s.ID, alice.ConnID)
		require.NoError(t, err)
		_, _, err = m.Join(s.ID, carol, "")
		assert.ErrorIs(t, err, ErrClosed)
		assert.Equal(t, before, s.Seats)

		_, ok := m.seated[carol.ConnID]
		assert.False(t, ok)
	})

	t.Run("checks the password", func(t *testing.T) {
		m := NewManager(DefaultConfig())
		s, err := m.Create(alice, "", "secret", 3)
		require.NoError(t, err)

		_, _, err = m.Join(s.ID, bob, "guess")
		assert.ErrorIs(t, err, ErrBadPassword)
		_, seat, err := m.Join(s.ID, bob, "secret")
		require.NoError(t, err)
		assert.Equal(t, 1, seat)
	})

	t.Run("unknown session and double seating fail", func(t *testing.T) {
		m, s := newTwoSeat(t)
		_, _, err := m.Join(99, bob, "")
		assert.ErrorIs(t, err, ErrNotFound)
		_, _, err = m.Join(s.ID, alice, "")
		assert.ErrorIs(t, err, ErrAlreadySeated)
	})
}

func TestManager_Start(t *testing.T) {
	t.Run("requires every seat filled", func(t *testing.T) {
		m, s := newTwoSeat(t)

		_, err := m.Start(s.ID, alice.ConnID)
		assert.ErrorIs(t, err, ErrInvalidState)
		assert.Equal(t, StatusOpen, s.Status)

		_, _, err = m.AddAI(s.ID, alice.ConnID, "AI 1")
		require.NoError(t, err)
		_, err = m.Start(s.ID, alice.ConnID)
		require.NoError(t, err)
		assert.Equal(t, StatusStarted, s.Status)
	})

	t.Run("only the owner may start", func(t *testing.T) {
		m, s := newTwoSeat(t)
		_, _, err := m.Join(s.ID, bob, "")
		require.NoError(t, err)

		_, err = m.Start(s.ID, bob.ConnID)
		assert.ErrorIs(t, err, ErrNotOwner)
		assert.ErrorIs(t, err, ErrInvalidState)
		assert.Equal(t, StatusOpen, s.Status)
	})

	t.Run("succeeds exactly when filled", func(t *testing.T) {
		for seats := 2; seats <= 6; seats++ {
			for filled := 1; filled <= seats; filled++ {
				t.Run(fmt.Sprintf("%d of %d", filled, seats), func(t *testing.T) {
					m := NewManager(DefaultConfig())
					s, err := m.Create(alice, "", "", seats)
					require.NoError(t, err)
					for i := 1; i < filled; i++ {
						_, _, err := m.AddAI(s.ID, alice.ConnID, fmt.Sprintf("AI %d", i))
						require.NoError(t, err)
					}

					_, err = m.Start(s.ID, alice.ConnID)
					if filled == seats {
						assert.NoError(t, err)
					} else {
						assert.ErrorIs(t, err, ErrInvalidState)
					}
				})
			}
		}
	})
}

func TestManager_LeaveAndRemove(t *testing.T) {
	t.Run("a guest leaving frees the seat", func(t *testing.T) {
		m, s := newTwoSeat(t)
		_, _, err := m.Join(s.ID, bob, "")
		require.NoError(t, err)

		_, err = m.Leave(s.ID, bob.ConnID)
		require.NoError(t, err)
		assert.Equal(t, SeatEmpty, s.Seats[1].Kind)
		_, _, ok := m.SeatOf(bob.ConnID)
		assert.False(t, ok)
	})

	t.Run("the owner leaving closes the session", func(t *testing.T) {
		m, s := newTwoSeat(t)
		_, _, err := m.Join(s.ID, bob, "")
		require.NoError(t, err)

		got, err := m.Leave(s.ID, alice.ConnID)
		require.NoError(t, err)
		assert.Equal(t, StatusClosed, got.Status)
		assert.Equal(t, 0, m.Len())
		_, _, ok := m.SeatOf(bob.ConnID)
		assert.False(t, ok)
	})

	t.Run("leaving a started session is refused", func(t *testing.T) {
		m, s := newTwoSeat(t)
		_, _, _ = m.Join(s.ID, bob, "")
		_, _ = m.Start(s.ID, alice.ConnID)

		_, err := m.Leave(s.ID, bob.ConnID)
		assert.ErrorIs(t, err, ErrInvalidState)
	})

	t.Run("owner removes a player by name", func(t *testing.T) {
		m, s := newTwoSeat(t)
		_, _, _ = m.Join(s.ID, bob, "")

		_, removed, err := m.Remove(s.ID, alice.ConnID, "bob")
		require.NoError(t, err)
		assert.Equal(t, bob.ConnID, removed.ConnID)
		assert.Equal(t, SeatEmpty, s.Seats[1].Kind)

		_, _, err = m.Remove(s.ID, alice.ConnID, "bob")
		assert.ErrorIs(t, err, ErrNotSeated)
		_, _, err = m.Remove(s.ID, alice.ConnID, "alice")
		assert.ErrorIs(t, err, ErrInvalidState)
	})

	t.Run("non-owners cannot remove or add AI", func(t *testing.T) {
		m, s := newTwoSeat(t)
		_, _, _ = m.Join(s.ID, bob, "")

		_, _, err := m.Remove(s.ID, bob.ConnID, "alice")
		assert.ErrorIs(t, err, ErrNotOwner)
		_, _, err = m.AddAI(s.ID, bob.ConnID, "AI")
		assert.ErrorIs(t, err, ErrNotOwner)
	})
}

func TestManager_Disconnect(t *testing.T) {
	t.Run("marks the seat gone in a started session", func(t *testing.T) {
		m, s := newTwoSeat(t)
		_, _, _ = m.Join(s.ID, bob, "")
		_, _ = m.Start(s.ID, alice.ConnID)

		got, seat, ok := m.Disconnect(bob.ConnID)
		require.True(t, ok)
		assert.Same(t, s, got)
		assert.Equal(t, 1, seat)
		assert.Equal(t, SeatGone, s.Seats[1].Kind)
		assert.Equal(t, "bob", s.Seats[1].Name)
		assert.Equal(t, StatusStarted, s.Status)
		assert.Equal(t, []int32{1}, s.Connections())
	})

	t.Run("frees the seat in an open session", func(t *testing.T) {
		m, s := newTwoSeat(t)
		_, _, _ = m.Join(s.ID, bob, "")

		_, seat, ok := m.Disconnect(bob.ConnID)
		require.True(t, ok)
		assert.Equal(t, 1, seat)
		assert.Equal(t, SeatEmpty, s.Seats[1].Kind)
	})

	t.Run("unseated connections are ignored", func(t *testing.T) {
		m := NewManager(DefaultConfig())
		_, _, ok := m.Disconnect(42)
		assert.False(t, ok)
	})
}

func TestSession_History(t *testing.T) {
	m := NewManager(Config{MinSeats: 2, MaxSeats: 2, HistoryLimit: 2})
	s, err := m.Create(alice, "", "", 2)
	require.NoError(t, err)

	s.Record("one")
	s.Record("two")
	s.Record("three")

	assert.Equal(t, []string{"two", "three"}, s.History())
}

func TestManager_Sessions(t *testing.T) {
	m := NewManager(DefaultConfig())
	a, _ := m.Create(alice, "a", "", 2)
	b, _ := m.Create(bob, "b", "pw", 3)

	got := m.Sessions()
	require.Len(t, got, 2)
	assert.Equal(t, a.ID, got[0].ID)
	assert.Equal(t, b.ID, got[1].ID)
	assert.True(t, got[1].HasPassword())

	_, err := m.Close(a.ID)
	require.NoError(t, err)
	_, ok := m.Lookup(a.ID)
	assert.False(t, ok)
	_, err = m.Close(a.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
