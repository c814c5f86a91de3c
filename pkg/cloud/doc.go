// Package cloud defines the canonical instance model shared by all provider
// adapters, the capability interface adapters implement, and the error
// taxonomy adapters translate provider SDK failures into.
package cloud
