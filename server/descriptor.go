package server

import (
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Descriptor is what the server advertises in UnconnectedPong. The listener
// does not interpret it.
type Descriptor struct {
	Edition    string `yaml:"edition"`
	MOTD       string `yaml:"motd"`
	SubMOTD    string `yaml:"sub_motd"`
	Protocol   int    `yaml:"protocol"`
	Version    string `yaml:"version"`
	MaxPlayers int    `yaml:"max_players"`
	GameMode   string `yaml:"game_mode"`
	GameModeID int    `yaml:"game_mode_id"`
}

func DefaultDescriptor() Descriptor {
	return Descriptor{
		Edition:    "MCPE",
		MOTD:       "Dedicated Server",
		SubMOTD:    "go-raknet",
		Protocol:   390,
		Version:    "1.14.60",
		MaxPlayers: 10,
		GameMode:   "Survival",
		GameModeID: 1,
	}
}

// LoadDescriptor reads a YAML document. Keys it does not set keep their
// DefaultDescriptor values.
func LoadDescriptor(r io.Reader) (Descriptor, error) {
	d := DefaultDescriptor()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&d); err != nil && err != io.EOF {
		return Descriptor{}, errors.Wrap(err, "decoding descriptor")
	}
	return d, nil
}

// Format renders the descriptor in the semicolon separated form clients
// expect in a pong. Semicolons inside values are replaced, as they would
// shift every following field.
func (d Descriptor) Format(guid uint64, online int, port int) string {
	clean := func(s string) string { return strings.ReplaceAll(s, ";", ",") }
	return fmt.Sprintf("%s;%s;%d;%s;%d;%d;%d;%s;%s;%d;%d;%d;",
		clean(d.Edition), clean(d.MOTD), d.Protocol, clean(d.Version),
		online, d.MaxPlayers, guid, clean(d.SubMOTD),
		clean(d.GameMode), d.GameModeID, port, port+1)
}
