package session

import "github.com/Veraticus/aromance/internal/model"

// ConsultationState is the lifecycle of the preference interview.
type ConsultationState string

// Consultation states.
const (
	ConsultationNotStarted ConsultationState = "NotStarted"
	ConsultationInProgress ConsultationState = "InProgress"
	ConsultationCompleted  ConsultationState = "Completed"
)

// Turn is one transcript entry.
type Turn struct {
	Role    string
	Content string
}

// Transcript roles.
const (
	RoleUser  = "user"
	RoleAgent = "agent"
)

// Consultation is the client-side record of the interview. Profile is
// set once the agent reports the interview finished, even if the
// follow-up steps have not all succeeded yet.
type Consultation struct {
	Profile     *model.FragranceProfile
	State       ConsultationState
	SessionID   string
	NextStep    string
	LastMessage string
	Transcript  []Turn
	FollowUps   []string
	Progress    float64
}

func (c Consultation) clone() Consultation {
	out := c
	if out.State == "" {
		out.State = ConsultationNotStarted
	}
	out.Transcript = append([]Turn(nil), c.Transcript...)
	out.FollowUps = append([]string(nil), c.FollowUps...)
	if c.Profile != nil {
		fp := c.Profile.Clone()
		out.Profile = &fp
	}
	return out
}

// Consultation returns the interview state.
func (s *Store) Consultation() Consultation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.consultation.clone()
}

// UpdateConsultation applies fn to a copy of the interview state and
// stores the result. It reports false, leaving the state untouched, when
// gen is no longer current.
func (s *Store) UpdateConsultation(gen uint64, fn func(*Consultation)) bool {
	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return false
	}
	c := s.consultation.clone()
	fn(&c)
	s.consultation = c.clone()
	s.mu.Unlock()

	s.notify(ChangeConsultation)
	return true
}
