package assets

import (
	_ "embed"
)

// LocatorJS is a function expression `(sel, op, arg) => result` that
// resolves a browser.Selector inside the page and applies op to the matches.
//
//go:embed locator.js
var LocatorJS string
