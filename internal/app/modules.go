package app

import (
	"github.com/vk/sitepipe/internal/handlers"
	"github.com/vk/sitepipe/modules/clean"
	"github.com/vk/sitepipe/modules/copy"
	"github.com/vk/sitepipe/modules/ftp"
	"github.com/vk/sitepipe/modules/http_request"
	"github.com/vk/sitepipe/modules/minify"
	"github.com/vk/sitepipe/modules/print"
	"github.com/vk/sitepipe/modules/rsync"
	"github.com/vk/sitepipe/modules/sass"
	"github.com/vk/sitepipe/modules/serve"
	"github.com/vk/sitepipe/modules/socketio"
)

// deployKinds are the action kinds that need the webhost config.
var deployKinds = []string{"rsync", "ftp"}

// coreModules returns fresh instances of every module compiled into the
// sitepipe binary.
func coreModules() []handlers.Module {
	return []handlers.Module{
		&print.Module{},
		&clean.Module{},
		&copy.Module{},
		&minify.Module{},
		&sass.Module{},
		&serve.Module{},
		&rsync.Module{},
		&ftp.Module{},
		&http_request.Module{},
		&socketio.Module{},
	}
}
