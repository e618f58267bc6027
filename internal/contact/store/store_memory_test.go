package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"linkage/internal/contact/models"
	"linkage/internal/contact/service"
	"linkage/pkg/platform/sentinel"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
	base  time.Time
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemoryStore()
	s.base = time.Date(2023, 4, 1, 0, 0, 0, 0, time.UTC)
}

func str(v string) *string { return &v }
func ref(v int64) *int64   { return &v }

func (s *InMemoryStoreSuite) primary(email, phone string, offset time.Duration) models.Contact {
	c := models.Contact{LinkPrecedence: models.LinkPrecedencePrimary, CreatedAt: s.base.Add(offset)}
	if email != "" {
		c.Email = str(email)
	}
	if phone != "" {
		c.PhoneNumber = str(phone)
	}
	return c
}

func (s *InMemoryStoreSuite) secondary(linkedID int64, email, phone string, offset time.Duration) models.Contact {
	c := s.primary(email, phone, offset)
	c.LinkPrecedence = models.LinkPrecedenceSecondary
	c.LinkedID = ref(linkedID)
	return c
}

func (s *InMemoryStoreSuite) inTx(fn func(store service.Store) error) error {
	return s.store.RunInTx(context.Background(), fn)
}

func contactIDs(contacts []models.Contact) []int64 {
	out := make([]int64, 0, len(contacts))
	for _, c := range contacts {
		out = append(out, c.ID)
	}
	return out
}

func (s *InMemoryStoreSuite) TestFindCandidates() {
	ids := s.store.Seed(
		s.primary("lorraine@hillvalley.edu", "123456", 0),
		s.primary("biff@hillvalley.edu", "717171", time.Hour),
	)
	s.store.Seed(
		s.secondary(ids[0], "mcfly@hillvalley.edu", "123456", 2*time.Hour),
		s.primary("george@hillvalley.edu", "919191", 3*time.Hour),
	)

	s.Run("expands a phone match to the whole chain", func() {
		var got models.Candidates
		err := s.inTx(func(store service.Store) error {
			var err error
			got, err = store.FindCandidates(context.Background(), models.Identifiers{PhoneNumber: str("123456")})
			return err
		})
		s.Require().NoError(err)
		s.Equal([]int64{1, 3}, contactIDs(got))
	})

	s.Run("expands a secondary email match to its primary", func() {
		var got models.Candidates
		err := s.inTx(func(store service.Store) error {
			var err error
			got, err = store.FindCandidates(context.Background(), models.Identifiers{Email: str("mcfly@hillvalley.edu")})
			return err
		})
		s.Require().NoError(err)
		s.Equal([]int64{1, 3}, contactIDs(got))
	})

	s.Run("unions chains matched by different identifiers", func() {
		var got models.Candidates
		err := s.inTx(func(store service.Store) error {
			var err error
			got, err = store.FindCandidates(context.Background(), models.Identifiers{
				Email:       str("george@hillvalley.edu"),
				PhoneNumber: str("717171"),
			})
			return err
		})
		s.Require().NoError(err)
		s.Equal([]int64{2, 4}, contactIDs(got))
	})

	s.Run("returns empty when nothing matches", func() {
		var got models.Candidates
		err := s.inTx(func(store service.Store) error {
			var err error
			got, err = store.FindCandidates(context.Background(), models.Identifiers{Email: str("doc@hillvalley.edu")})
			return err
		})
		s.Require().NoError(err)
		s.Empty(got)
	})
}

func (s *InMemoryStoreSuite) TestSoftDeletedContactsAreInvisible() {
	ids := s.store.Seed(s.primary("marty@hillvalley.edu", "555", 0))
	s.store.SoftDelete(ids[0], s.base.Add(time.Minute))

	err := s.inTx(func(store service.Store) error {
		got, err := store.FindCandidates(context.Background(), models.Identifiers{Email: str("marty@hillvalley.edu")})
		s.Require().NoError(err)
		s.Empty(got)

		_, err = store.FindByID(context.Background(), ids[0])
		s.ErrorIs(err, sentinel.ErrNotFound)

		chain, err := store.FindChain(context.Background(), ids[0])
		s.Require().NoError(err)
		s.Empty(chain)
		return nil
	})
	s.Require().NoError(err)
}

func (s *InMemoryStoreSuite) TestCreate() {
	s.Run("assigns increasing ids", func() {
		store := NewInMemoryStore()
		err := store.RunInTx(context.Background(), func(tx service.Store) error {
			first := s.primary("a@example.com", "", 0)
			second := s.primary("b@example.com", "", time.Second)
			s.Require().NoError(tx.Create(context.Background(), &first))
			s.Require().NoError(tx.Create(context.Background(), &second))
			s.Equal(int64(1), first.ID)
			s.Equal(int64(2), second.ID)
			return nil
		})
		s.Require().NoError(err)
		s.Len(store.Snapshot(), 2)
	})

	s.Run("rejects a secondary linked to a missing contact", func() {
		store := NewInMemoryStore()
		err := store.RunInTx(context.Background(), func(tx service.Store) error {
			orphan := s.secondary(42, "a@example.com", "", 0)
			return tx.Create(context.Background(), &orphan)
		})
		s.ErrorIs(err, sentinel.ErrConflict)
		s.Empty(store.Snapshot())
	})
}

func (s *InMemoryStoreSuite) TestRelinkFlattensDemotedChains() {
	ids := s.store.Seed(
		s.primary("a@example.com", "1", 0),
		s.primary("b@example.com", "2", time.Hour),
		s.primary("c@example.com", "3", 2*time.Hour),
	)
	s.store.Seed(
		s.secondary(ids[1], "b2@example.com", "2", 3*time.Hour),
		s.secondary(ids[2], "c2@example.com", "3", 4*time.Hour),
	)
	now := s.base.Add(24 * time.Hour)

	var changed int64
	err := s.inTx(func(store service.Store) error {
		var err error
		changed, err = store.Relink(context.Background(), ids[0], []int64{ids[1], ids[2]}, now)
		return err
	})
	s.Require().NoError(err)
	s.Equal(int64(4), changed)

	for _, c := range s.store.Snapshot() {
		if c.ID == ids[0] {
			s.True(c.IsPrimary())
			s.Nil(c.LinkedID)
			continue
		}
		s.Equal(models.LinkPrecedenceSecondary, c.LinkPrecedence)
		s.Require().NotNil(c.LinkedID)
		s.Equal(ids[0], *c.LinkedID)
		s.Equal(now, c.UpdatedAt)
	}
}

func (s *InMemoryStoreSuite) TestRunInTxRollsBackOnError() {
	s.store.Seed(s.primary("a@example.com", "1", 0))
	boom := errors.New("boom")

	err := s.inTx(func(store service.Store) error {
		c := s.primary("b@example.com", "2", time.Hour)
		s.Require().NoError(store.Create(context.Background(), &c))
		_, err := store.Relink(context.Background(), c.ID, []int64{1}, s.base)
		s.Require().NoError(err)
		return boom
	})
	s.ErrorIs(err, boom)

	snapshot := s.store.Snapshot()
	s.Require().Len(snapshot, 1)
	s.True(snapshot[0].IsPrimary())

	// ids handed out inside the failed transaction are reused
	err = s.inTx(func(store service.Store) error {
		c := s.primary("c@example.com", "3", 2*time.Hour)
		s.Require().NoError(store.Create(context.Background(), &c))
		s.Equal(int64(2), c.ID)
		return nil
	})
	s.Require().NoError(err)
}

func (s *InMemoryStoreSuite) TestRunInTxHonoursCancelledContext() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := s.store.RunInTx(ctx, func(service.Store) error {
		called = true
		return nil
	})
	s.ErrorIs(err, context.Canceled)
	s.False(called)
}
