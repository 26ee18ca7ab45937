package cli

import "errors"

var (
	errConfigInvalid      = errors.New("invalid config")
	errConfigFileNotFound = errors.New("config file not found")
	errConfigFileRead     = errors.New("cannot read config file")
	errStoreDirEmpty      = errors.New("store_dir must not be empty")
	errUnknownCommand     = errors.New("unknown command")
	errMissingArgument    = errors.New("missing argument")
	errTooManyArguments   = errors.New("too many arguments")
)
