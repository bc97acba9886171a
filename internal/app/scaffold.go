package app

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// StockTaskfile is the taskfile written by `sitepipe init`: a small static
// site with SCSS sources under src/, built into dist/ and deployed over SSH
// or FTP.
const StockTaskfile = `# Development

task "serve" {
  description = "Serve ./src with live reload"
  action "serve" {
    root = "./src"

    watch {
      paths  = ["./src/**/*.{html,js}"]
      reload = true
    }
    watch {
      paths = ["./src/sass/**/*.scss"]
      run   = "sass"
    }
  }
}

task "sass" {
  description = "Compile SCSS into ./src/css"
  action "sass" {
    src      = ["./src/sass/**/*.scss"]
    dest     = "./src/css"
    browsers     = ["last 4 versions"]
    inject       = true
    allow_errors = true
  }
}

# Build subtasks

task "clean" {
  description = "Empty ./dist"
  action "clean" {
    path = "./dist"
  }
}

task "copy" {
  description = "Copy HTML and images into ./dist"
  action "copy" {
    src  = ["./src/{**/*.html,img/*}"]
    dest = "./dist"
  }
}

task "js" {
  description = "Minify scripts into ./dist/js"
  action "minify_js" {
    src  = ["./src/js/**/*.js"]
    dest = "./dist/js"
  }
}

task "css:minify" {
  action "minify_css" {
    src  = ["./src/css/**/*.css"]
    dest = "./dist/css"
  }
}

task "css" {
  description = "Compile and minify stylesheets into ./dist/css"
  series      = ["sass", "css:minify"]
}

# Build

task "assets" {
  parallel = ["copy", "js", "css"]
}

task "build" {
  description = "Rebuild ./dist from scratch"
  series      = ["clean", "assets"]
}

task "serve:dist" {
  action "serve" {
    root = "./dist"
    port = 3030
  }
}

task "serveBuild" {
  description = "Build, then serve ./dist on port 3030"
  series      = ["build", "serve:dist"]
}

# Deploy (needs webhost-config.json)

task "rsync" {
  action "rsync" {
    root  = "./dist"
    clean = true
  }
}

task "deploy" {
  description = "Build, then sync ./dist over SSH (--all re-uploads everything)"
  series      = ["build", "rsync"]
}

task "ftp" {
  action "ftp" {
    root     = "./dist"
    parallel = 10
  }
}

task "ftp-deploy" {
  description = "Build, then upload ./dist over FTP (--all re-uploads everything)"
  series      = ["build", "ftp"]
}

task "default" {
  series = ["sass", "serve"]
}
`

// ErrTaskfileExists is returned by WriteStockTaskfile when path is taken and
// overwriting was not requested.
var ErrTaskfileExists = errors.New("taskfile already exists")

// WriteStockTaskfile writes StockTaskfile to path.
func WriteStockTaskfile(path string, force bool) error {
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !force {
		flags |= os.O_EXCL
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("%s: %w", path, ErrTaskfileExists)
	}
	if err != nil {
		return err
	}
	if _, err := f.WriteString(StockTaskfile); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
