// (c) Copyright 2024 MediaForge Technologies LP

//go:build windows
// +build windows

// Package wmi handles WMI queries
package wmi

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/go-ole/go-ole"
	"github.com/go-ole/go-ole/oleutil"

	log "github.com/mediaforge/boot-host-libs/logger"
)

const defaultNamespace = `ROOT\CIMV2`

var execMutex sync.Mutex

// ExecQuery runs the given WQL query and hands each returned class object to the visit
// callback.  Property values are read with the StringProperty and UintProperty helpers.
// COM is initialized per call on a locked OS thread, so callers need no COM state of
// their own.
func ExecQuery(wqlQuery string, namespace string, visit func(item *ole.IDispatch) error) (err error) {
	log.Tracef(">>>>> ExecQuery, wqlQuery=%v, namespace=%v", wqlQuery, namespace)
	defer log.Trace("<<<<< ExecQuery")

	if namespace == "" {
		namespace = defaultNamespace
	}

	// WMI is apartment threaded
	execMutex.Lock()
	defer execMutex.Unlock()
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if err = ole.CoInitializeEx(0, ole.COINIT_MULTITHREADED); err != nil {
		oleCode := err.(*ole.OleError).Code()
		// S_FALSE means COM was already initialized on this thread
		if oleCode != ole.S_OK && oleCode != 0x00000001 {
			log.Errorf("CoInitializeEx failed, err=%v", err)
			return err
		}
	}
	defer ole.CoUninitialize()

	unknown, err := oleutil.CreateObject("WbemScripting.SWbemLocator")
	if err != nil {
		log.Errorf("CreateObject failed, err=%v", err)
		return err
	}
	defer unknown.Release()

	locator, err := unknown.QueryInterface(ole.IID_IDispatch)
	if err != nil {
		log.Errorf("QueryInterface failed, err=%v", err)
		return err
	}
	defer locator.Release()

	serviceRaw, err := oleutil.CallMethod(locator, "ConnectServer", nil, namespace)
	if err != nil {
		log.Errorf("ConnectServer failed, namespace=%v, err=%v", namespace, err)
		return err
	}
	service := serviceRaw.ToIDispatch()
	defer serviceRaw.Clear()

	resultRaw, err := oleutil.CallMethod(service, "ExecQuery", wqlQuery)
	if err != nil {
		log.Errorf("ExecQuery failed, wqlQuery=%v, err=%v", wqlQuery, err)
		return err
	}
	result := resultRaw.ToIDispatch()
	defer resultRaw.Clear()

	countVar, err := oleutil.GetProperty(result, "Count")
	if err != nil {
		log.Errorf("Count failed, err=%v", err)
		return err
	}
	count := int(countVar.Val)

	for i := 0; i < count; i++ {
		if err = visitItem(result, i, visit); err != nil {
			return err
		}
	}
	return nil
}

func visitItem(result *ole.IDispatch, index int, visit func(item *ole.IDispatch) error) error {
	itemRaw, err := oleutil.CallMethod(result, "ItemIndex", index)
	if err != nil {
		log.Errorf("ItemIndex failed, index=%v, err=%v", index, err)
		return err
	}
	item := itemRaw.ToIDispatch()
	defer itemRaw.Clear()
	return visit(item)
}

// StringProperty reads a string property of a WMI class object; a null value reads as
// the empty string
func StringProperty(item *ole.IDispatch, name string) string {
	prop, err := oleutil.GetProperty(item, name)
	if err != nil {
		return ""
	}
	defer prop.Clear()
	if prop.VT == ole.VT_NULL {
		return ""
	}
	return fmt.Sprintf("%v", prop.Value())
}

// UintProperty reads an unsigned integer property of a WMI class object; a null value
// reads as zero
func UintProperty(item *ole.IDispatch, name string) uint64 {
	prop, err := oleutil.GetProperty(item, name)
	if err != nil {
		return 0
	}
	defer prop.Clear()
	switch v := prop.Value().(type) {
	case int8:
		return uint64(v)
	case int16:
		return uint64(v)
	case int32:
		return uint64(v)
	case int64:
		return uint64(v)
	case uint8:
		return uint64(v)
	case uint16:
		return uint64(v)
	case uint32:
		return uint64(v)
	case uint64:
		return v
	case string:
		var parsed uint64
		fmt.Sscanf(v, "%d", &parsed)
		return parsed
	default:
		return 0
	}
}
