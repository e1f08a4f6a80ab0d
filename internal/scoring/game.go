package scoring

import (
	"errors"
	"fmt"
)

// ErrInvalidOperation is returned when a game does not have the shape an operation requires.
var ErrInvalidOperation = errors.New("invalid operation")

// Player is one participant, identified by name.
type Player struct {
	Name string
}

// Team is a group of players competing together.
type Team struct {
	Name    string
	Players []Player
}

// Outcome is the result of a two-team game.
type Outcome int

const (
	Team1Win Outcome = iota
	Draw
	Team2Win
)

func (o Outcome) String() string {
	switch o {
	case Team1Win:
		return "Team1Win"
	case Draw:
		return "Draw"
	case Team2Win:
		return "Team2Win"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Game is one match between teams.
type Game struct {
	Teams   []Team
	Outcome Outcome
}

// Pair returns the two teams of a head-to-head game.
func (g *Game) Pair() (Team, Team, error) {
	if len(g.Teams) != 2 {
		return Team{}, Team{}, fmt.Errorf("%w: expected 2 teams, got %d", ErrInvalidOperation, len(g.Teams))
	}
	return g.Teams[0], g.Teams[1], nil
}

// Winner returns the winning team. ok is false for a draw.
func (g *Game) Winner() (Team, bool, error) {
	first, second, err := g.Pair()
	if err != nil {
		return Team{}, false, err
	}
	switch g.Outcome {
	case Team1Win:
		return first, true, nil
	case Team2Win:
		return second, true, nil
	case Draw:
		return Team{}, false, nil
	default:
		return Team{}, false, fmt.Errorf("%w: unknown outcome %s", ErrInvalidOperation, g.Outcome)
	}
}

// Loser returns the losing team. ok is false for a draw.
func (g *Game) Loser() (Team, bool, error) {
	first, second, err := g.Pair()
	if err != nil {
		return Team{}, false, err
	}
	switch g.Outcome {
	case Team1Win:
		return second, true, nil
	case Team2Win:
		return first, true, nil
	case Draw:
		return Team{}, false, nil
	default:
		return Team{}, false, fmt.Errorf("%w: unknown outcome %s", ErrInvalidOperation, g.Outcome)
	}
}

// Players returns every player of every team in team order.
func (g *Game) Players() []Player {
	var players []Player
	for _, t := range g.Teams {
		players = append(players, t.Players...)
	}
	return players
}

// HeadToHead builds a one-against-one game.
func HeadToHead(p1, p2 Player, outcome Outcome) *Game {
	return &Game{
		Teams: []Team{
			{Name: p1.Name, Players: []Player{p1}},
			{Name: p2.Name, Players: []Player{p2}},
		},
		Outcome: outcome,
	}
}
