//go:build darwin

package exportfs

// SetFile ships with the Xcode command line tools.
var creationTimeTool = "SetFile"
