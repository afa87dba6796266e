package userconfig

// userconfig reads the YAML config file and combines the settings of each
// section into a single Meta.
