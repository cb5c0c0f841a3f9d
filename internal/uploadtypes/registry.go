// Package uploadtypes assembles the registry of every upload type the
// service accepts.
package uploadtypes

import (
	"massupload/internal/store"
	"massupload/internal/upload"
	"massupload/internal/uploadtypes/partmaster"
	"massupload/internal/uploadtypes/yieldparam"
)

// NewRegistry binds every upload type to its repository in db.
func NewRegistry(db *store.DB) (*upload.Registry, error) {
	return upload.NewRegistry(
		yieldparam.Definition(store.NewYieldParameterRepository(db)),
		partmaster.Definition(store.NewPartRepository(db)),
	)
}
