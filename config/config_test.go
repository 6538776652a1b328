package config

import (
	"fmt"
	"io/ioutil"
	"os"
	"testing"
)

const testconf = "testconfig"

func TestConfig(t *testing.T) {

	Config = nil

	ioutil.WriteFile(testconf, []byte(`{
    "NumNodes": 3,
    "TimeWindow": 5.5
}`), 0644)

	defer func() {
		if err := os.Remove(testconf); err != nil {
			fmt.Print("Could not remove test config file:", err.Error())
		}
	}()

	if err := LoadConfigFile(testconf); err != nil {
		t.Error(err)
		return
	}

	if res := Int(NumNodes); res != 3 {
		t.Error("Unexpected result:", res)
		return
	}

	if res := Float(TimeWindow); res != 5.5 {
		t.Error("Unexpected result:", res)
		return
	}

	if res := Str(Prefix); res != fmt.Sprint(DefaultConfig[Prefix]) {
		t.Error("Unexpected result:", res)
		return
	}

	LoadDefaultConfig()

	if res := Int(NumNodes); res != 1 {
		t.Error("Unexpected result:", res)
		return
	}

	Config[StartingPort] = "123"

	if res := Int(StartingPort); fmt.Sprint(res) == fmt.Sprint(DefaultConfig[StartingPort]) {
		t.Error("Unexpected result:", res)
		return
	}
}

func TestDataPath(t *testing.T) {
	LoadDefaultConfig()
	Config[InputPath] = "/var/graphstream/input/flows.csv"

	if res := DataPath("queries.json"); res != "/var/graphstream/input/queries.json" {
		t.Error("Unexpected result:", res)
	}
}
