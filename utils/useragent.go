package utils

import (
	"runtime"
)

const (
	PACKAGE_ID      = "socrata_sdk_go/"
	PACKAGE_VERSION = "0.1.0"
	OS_NAME         = runtime.GOOS
	ARCH            = runtime.GOARCH
)

func BuildUserAgent() string {
	userAgent := PACKAGE_ID + PACKAGE_VERSION + ";" + runtime.Version() + ";" + OS_NAME + ";arch " + ARCH
	return userAgent
}
