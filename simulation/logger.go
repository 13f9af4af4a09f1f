package simulation

import "github.com/sirupsen/logrus"

var log = logrus.WithField("module", "simulation")
