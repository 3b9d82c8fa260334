package pulse

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type pulseTestSuite struct {
	suite.Suite

	mu      sync.Mutex
	expired []string
}

func TestPulse(t *testing.T) {
	suite.Run(t, new(pulseTestSuite))
}

func (s *pulseTestSuite) SetupTest() {
	s.expired = nil
}

func (s *pulseTestSuite) newTable() *Table {
	return NewTable(func(key string) {
		s.mu.Lock()
		s.expired = append(s.expired, key)
		s.mu.Unlock()
	})
}

func (s *pulseTestSuite) expiredKeys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.expired...)
}

func (s *pulseTestSuite) TestExpiresExactlyOnce() {
	t := s.newTable()
	defer t.Stop()

	t.Arm("a", 30*time.Millisecond)
	s.Require().True(t.Active("a"))

	s.Require().Eventually(func() bool {
		return !t.Active("a")
	}, time.Second, 5*time.Millisecond)

	time.Sleep(50 * time.Millisecond)
	s.Require().Equal([]string{"a"}, s.expiredKeys())
}

func (s *pulseTestSuite) TestRearmReplacesPendingTimer() {
	t := s.newTable()
	defer t.Stop()

	t.Arm("a", 40*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	t.Arm("a", 100*time.Millisecond)

	// past the first deadline the entry is still lit and the replaced
	// timer has not fired
	time.Sleep(40 * time.Millisecond)
	s.Require().True(t.Active("a"))
	s.Require().Empty(s.expiredKeys())

	s.Require().Eventually(func() bool {
		return !t.Active("a")
	}, time.Second, 5*time.Millisecond)
	s.Require().Equal([]string{"a"}, s.expiredKeys())
}

func (s *pulseTestSuite) TestIndependentKeys() {
	t := s.newTable()
	defer t.Stop()

	t.Arm("a", 30*time.Millisecond)
	t.Arm("b", 500*time.Millisecond)

	s.Require().Eventually(func() bool {
		return !t.Active("a")
	}, time.Second, 5*time.Millisecond)
	s.Require().True(t.Active("b"))
	s.Require().Len(t.Keys(), 1)
}

func (s *pulseTestSuite) TestStopSilencesCallbacks() {
	t := s.newTable()

	t.Arm("a", 20*time.Millisecond)
	t.Stop()

	s.Require().False(t.Active("a"))
	time.Sleep(50 * time.Millisecond)
	s.Require().Empty(s.expiredKeys())

	// arming after stop is a no-op
	t.Arm("b", 10*time.Millisecond)
	s.Require().False(t.Active("b"))
}
