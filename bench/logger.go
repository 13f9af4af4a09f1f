package bench

import "github.com/sirupsen/logrus"

var log = logrus.WithField("module", "bench")
