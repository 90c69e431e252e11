package recipe

import "errors"

var errNoFallback = errors.New("recipe: no recipe matched and no fallback is configured")
