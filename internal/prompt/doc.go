// Package prompt holds the instruction templates wrapped around a diff before
// it is sent to a model.
package prompt
