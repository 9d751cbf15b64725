package models

import (
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrUnknownOption = errors.New("unknown poll option")
	ErrPollClosed    = errors.New("poll is closed")
)

// PollOption is one answer of a poll. IDs are 1-based positions.
type PollOption struct {
	ID    int    `json:"id"`
	Text  string `json:"text"`
	Votes int    `json:"votes"`
}

// PollQuestion is a poll. At most one row has IsActive set; storage enforces
// it by deactivating the others in the same transaction that inserts a new one.
type PollQuestion struct {
	ID        string                           `gorm:"primaryKey" json:"id"`
	Question  string                           `gorm:"type:text;not null" json:"question"`
	Options   datatypes.JSONType[[]PollOption] `json:"options"`
	IsActive  bool                             `gorm:"not null;default:false;index" json:"is_active"`
	CreatedAt time.Time                        `json:"created_at"`
}

func (p *PollQuestion) BeforeCreate(tx *gorm.DB) (err error) {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	return
}

// NewPollOptions numbers the option texts 1..n with zero votes.
func NewPollOptions(texts []string) []PollOption {
	opts := make([]PollOption, len(texts))
	for i, text := range texts {
		opts[i] = PollOption{ID: i + 1, Text: text}
	}
	return opts
}

// TotalVotes sums the votes of all options.
func (p PollQuestion) TotalVotes() int {
	total := 0
	for _, o := range p.Options.Data() {
		total += o.Votes
	}
	return total
}

// Vote increments exactly one option by one.
func (p *PollQuestion) Vote(optionID int) error {
	opts := append([]PollOption(nil), p.Options.Data()...)
	for i := range opts {
		if opts[i].ID == optionID {
			opts[i].Votes++
			p.Options = datatypes.NewJSONType(opts)
			return nil
		}
	}
	return ErrUnknownOption
}

// Percentages returns the whole-number share of each option, in option order.
// All zeros when nobody voted; otherwise the values sum to exactly 100
// (largest remainder).
func (p PollQuestion) Percentages() []int {
	opts := p.Options.Data()
	out := make([]int, len(opts))
	total := p.TotalVotes()
	if total == 0 {
		return out
	}

	type rem struct {
		idx int
		r   int
	}
	rems := make([]rem, len(opts))
	sum := 0
	for i, o := range opts {
		out[i] = o.Votes * 100 / total
		sum += out[i]
		rems[i] = rem{idx: i, r: o.Votes * 100 % total}
	}
	sort.SliceStable(rems, func(i, j int) bool { return rems[i].r > rems[j].r })
	for i := 0; sum < 100; i++ {
		out[rems[i%len(rems)].idx]++
		sum++
	}
	return out
}
