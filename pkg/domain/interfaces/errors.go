package interfaces

import "github.com/m-mizutani/goerr/v2"

// ErrNotFound is wrapped by every repository backend when a requested
// record does not exist.
var ErrNotFound = goerr.New("record not found")
