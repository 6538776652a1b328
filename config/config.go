/*
 * GraphStream
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

/*
Package config holds the process-wide, fixed-at-construction configuration
for a graphstreamd node: cluster topology, capacity and transport tuning,
and input/output paths. It is grounded on EliasDB's own config package - a
package-level map loaded from JSON with typed defaults - generalized from
EliasDB's web-server settings to a graphstreamd node's own CLI surface.
*/
package config

import (
	"fmt"
	"path"
	"strconv"

	"github.com/krotik/common/errorutil"
	"github.com/krotik/common/fileutil"
)

/*
DefaultConfigFile is the default config file name a graphstreamd node looks
for next to its working directory.
*/
var DefaultConfigFile = "graphstream.config.json"

/*
Known configuration keys, mirroring graphstreamd's command-line flags.
*/
const (
	NumNodes        = "NumNodes"
	NodeID          = "NodeID"
	Prefix          = "Prefix"
	StartingPort    = "StartingPort"
	GraphCapacity   = "GraphCapacity"
	TableCapacity   = "TableCapacity"
	FeatureCapacity = "FeatureCapacity"
	HWM             = "HWM"
	TimeoutMS       = "TimeoutMS"
	TimeWindow      = "TimeWindow"
	QueueLength     = "QueueLength"
	NumSockets      = "NumSockets"
	NumPullThreads  = "NumPullThreads"
	InputPath       = "InputPath"
	OutputPath      = "OutputPath"
)

/*
DefaultConfig is the default configuration used when no config file is
present, or to fill in any key a supplied config file omits.
*/
var DefaultConfig = map[string]interface{}{
	NumNodes:        1,
	NodeID:          0,
	Prefix:          "",
	StartingPort:    9020,
	GraphCapacity:   10007,
	TableCapacity:   10007,
	FeatureCapacity: 1009,
	HWM:             1024,
	TimeoutMS:       500,
	TimeWindow:      10.0,
	QueueLength:     4096,
	NumSockets:      2,
	NumPullThreads:  2,
	InputPath:       "",
	OutputPath:      "",
}

/*
Config is the actual configuration in use; nil until LoadConfigFile or
LoadDefaultConfig is called.
*/
var Config map[string]interface{}

/*
LoadConfigFile loads a given config file. If the config file does not
exist it is created with the default options, the same as EliasDB's
fileutil.LoadConfig convention.
*/
func LoadConfigFile(configfile string) error {
	var err error

	Config, err = fileutil.LoadConfig(configfile, DefaultConfig)

	return err
}

/*
LoadDefaultConfig loads the default configuration, unaffected by any file
on disk.
*/
func LoadDefaultConfig() {
	data := make(map[string]interface{})
	for k, v := range DefaultConfig {
		data[k] = v
	}

	Config = data
}

/*
Str reads a config value as a string.
*/
func Str(key string) string {
	return fmt.Sprint(Config[key])
}

/*
Int reads a config value as an int.
*/
func Int(key string) int64 {
	ret, err := strconv.ParseInt(fmt.Sprint(Config[key]), 10, 64)

	errorutil.AssertTrue(err == nil,
		fmt.Sprintf("Could not parse config key %v: %v", key, err))

	return ret
}

/*
Float reads a config value as a float64 - used for TimeWindow and other
fractional-second settings.
*/
func Float(key string) float64 {
	ret, err := strconv.ParseFloat(fmt.Sprint(Config[key]), 64)

	errorutil.AssertTrue(err == nil,
		fmt.Sprintf("Could not parse config key %v: %v", key, err))

	return ret
}

/*
Bool reads a config value as a bool.
*/
func Bool(key string) bool {
	ret, err := strconv.ParseBool(fmt.Sprint(Config[key]))

	errorutil.AssertTrue(err == nil,
		fmt.Sprintf("Could not parse config key %v: %v", key, err))

	return ret
}

/*
DataPath returns a path relative to the node's configured input directory,
used to locate auxiliary feature or query definition files shipped
alongside the main input stream.
*/
func DataPath(parts ...string) string {
	return path.Join(path.Dir(Str(InputPath)), path.Join(parts...))
}
