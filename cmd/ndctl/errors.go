package main

import "errors"

// errStopWalk ends a block walk early once past the requested chunk.
var errStopWalk = errors.New("stop walk")
