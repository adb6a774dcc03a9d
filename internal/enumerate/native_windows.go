//go:build windows

package enumerate

import (
	"context"
	"fmt"
	"unicode/utf16"
	"unsafe"

	"go.uber.org/zap"
	"golang.org/x/sys/windows"

	"github.com/pipewatch/pipewatch/internal/logging"
	"github.com/pipewatch/pipewatch/internal/pipes"
)

var (
	ntdll                    = windows.NewLazySystemDLL("ntdll.dll")
	procNtQueryDirectoryFile = ntdll.NewProc("NtQueryDirectoryFile")
)

const (
	statusSuccess     = 0x00000000
	statusNoMoreFiles = 0x80000006

	// FileDirectoryInformation information class.
	fileDirectoryInformationClass = 1

	queryBufferSize = 4096
)

// ioStatusBlock mirrors IO_STATUS_BLOCK.
type ioStatusBlock struct {
	Status      uintptr
	Information uintptr
}

// fileDirectoryInformation mirrors FILE_DIRECTORY_INFORMATION. The pipe
// filesystem reuses the two size fields: EndOfFile carries the current
// instance count and AllocationSize the configured maximum.
type fileDirectoryInformation struct {
	NextEntryOffset uint32
	FileIndex       uint32
	CreationTime    int64
	LastAccessTime  int64
	LastWriteTime   int64
	ChangeTime      int64
	EndOfFile       int64
	AllocationSize  int64
	FileAttributes  uint32
	FileNameLength  uint32
	FileName        [1]uint16
}

// native queries the pipe filesystem with NtQueryDirectoryFile. Slower than
// the fast listing but reports instance counts and, best effort, each pipe's
// security descriptor.
type native struct {
	log *logging.Logger
}

func newNative(log *logging.Logger) (Enumerator, error) {
	if err := procNtQueryDirectoryFile.Find(); err != nil {
		return nil, fmt.Errorf("NtQueryDirectoryFile unavailable: %w", err)
	}
	return &native{log: log.Named("native")}, nil
}

func (n *native) Name() string { return MethodNative }

func (n *native) Pipes(ctx context.Context) ([]pipes.Info, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	root, err := openPipeRoot()
	if err != nil {
		return nil, fmt.Errorf("open pipe namespace: %w", err)
	}
	defer windows.CloseHandle(root)

	var infos []pipes.Info
	buf := make([]byte, queryBufferSize)
	restart := uintptr(1) // TRUE on the first call, then continue the scan

	for {
		var iosb ioStatusBlock
		status, _, _ := procNtQueryDirectoryFile.Call(
			uintptr(root),
			0, // Event
			0, // ApcRoutine
			0, // ApcContext
			uintptr(unsafe.Pointer(&iosb)),
			uintptr(unsafe.Pointer(&buf[0])),
			uintptr(len(buf)),
			fileDirectoryInformationClass,
			0, // ReturnSingleEntry
			0, // FileName
			restart,
		)
		restart = 0

		if status == statusNoMoreFiles {
			break
		}
		if status != statusSuccess {
			return nil, fmt.Errorf("query pipe directory: status 0x%08x", status)
		}

		offset := uintptr(0)
		for {
			entry := (*fileDirectoryInformation)(unsafe.Pointer(&buf[offset]))
			if info := entryInfo(entry); info.Name != "" {
				infos = append(infos, info)
			}
			if entry.NextEntryOffset == 0 {
				break
			}
			offset += uintptr(entry.NextEntryOffset)
		}
	}

	n.log.Debug("queried pipe namespace", zap.Int("pipes", len(infos)))
	return infos, nil
}

func entryInfo(entry *fileDirectoryInformation) pipes.Info {
	var name string
	if n := int(entry.FileNameLength / 2); n > 0 {
		units := unsafe.Slice(&entry.FileName[0], n)
		name = string(utf16.Decode(units))
	}

	info := pipes.New(name)
	info.CurrentInstances = pipes.ClampInstances(entry.EndOfFile)
	info.MaxInstances = pipes.ClampInstances(entry.AllocationSize)
	info.SecurityDescriptor = securityDescriptor(name)
	return info
}

func openPipeRoot() (windows.Handle, error) {
	path, err := windows.UTF16PtrFromString(pipes.Prefix)
	if err != nil {
		return windows.InvalidHandle, err
	}
	return windows.CreateFile(
		path,
		windows.FILE_LIST_DIRECTORY|windows.SYNCHRONIZE,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE,
		nil,
		windows.OPEN_EXISTING,
		0,
		0,
	)
}

// securityDescriptor opens the pipe with READ_CONTROL only and renders its
// descriptor as SDDL. Pipes that refuse the open report none.
func securityDescriptor(name string) string {
	if name == "" {
		return ""
	}
	path, err := windows.UTF16PtrFromString(pipes.FullPath(name))
	if err != nil {
		return ""
	}

	h, err := windows.CreateFile(
		path,
		windows.READ_CONTROL,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE,
		nil,
		windows.OPEN_EXISTING,
		0,
		0,
	)
	if err != nil {
		return ""
	}
	defer windows.CloseHandle(h)

	sd, err := windows.GetSecurityInfo(
		h,
		windows.SE_KERNEL_OBJECT,
		windows.OWNER_SECURITY_INFORMATION|windows.GROUP_SECURITY_INFORMATION|
			windows.DACL_SECURITY_INFORMATION|windows.LABEL_SECURITY_INFORMATION,
	)
	if err != nil {
		return ""
	}
	return sd.String()
}
