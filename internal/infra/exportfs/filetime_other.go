//go:build !darwin

package exportfs

// Creation time cannot be set portably outside macOS.
var creationTimeTool = ""
