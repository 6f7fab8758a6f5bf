package actor

import "github.com/roasbeef/rotorgo/internal/rotorlog"

var log = rotorlog.GetLogger("actor")
