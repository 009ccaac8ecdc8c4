package watch

import "errors"

var errMaxWatchers = errors.New("watch: maximum number of watchers reached")
