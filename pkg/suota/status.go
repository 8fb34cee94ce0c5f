package suota

import "fmt"

// Status is the update status reported by READ_STATUS.
type Status uint32

// Update statuses.
const (
	StatusIdle            Status = 0x00
	StatusSrvStarted      Status = 0x01
	StatusCmpOK           Status = 0x02
	StatusSrvExit         Status = 0x03
	StatusCRCErr          Status = 0x04
	StatusPatchLenErr     Status = 0x05
	StatusExtMemWriteErr  Status = 0x06
	StatusIntMemErr       Status = 0x07
	StatusInvalMemType    Status = 0x08
	StatusAppError        Status = 0x09
	StatusImgStarted      Status = 0x10
	StatusInvalImgBank    Status = 0x11
	StatusInvalImgHdr     Status = 0x12
	StatusInvalImgSize    Status = 0x13
	StatusInvalProductHdr Status = 0x14
	StatusSameImgErr      Status = 0x15
	StatusExtMemReadErr   Status = 0x16
)

var statusNames = map[Status]string{
	StatusIdle:            "IDLE",
	StatusSrvStarted:      "SRV_STARTED",
	StatusCmpOK:           "CMP_OK",
	StatusSrvExit:         "SRV_EXIT",
	StatusCRCErr:          "CRC_ERR",
	StatusPatchLenErr:     "PATCH_LEN_ERR",
	StatusExtMemWriteErr:  "EXT_MEM_WRITE_ERR",
	StatusIntMemErr:       "INT_MEM_ERR",
	StatusInvalMemType:    "INVAL_MEM_TYPE",
	StatusAppError:        "APP_ERROR",
	StatusImgStarted:      "IMG_STARTED",
	StatusInvalImgBank:    "INVAL_IMG_BANK",
	StatusInvalImgHdr:     "INVAL_IMG_HDR",
	StatusInvalImgSize:    "INVAL_IMG_SIZE",
	StatusInvalProductHdr: "INVAL_PRODUCT_HDR",
	StatusSameImgErr:      "SAME_IMG_ERR",
	StatusExtMemReadErr:   "EXT_MEM_READ_ERR",
}

// String implements fmt.Stringer.
func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("STATUS_%02X", uint32(s))
}

// IsError indicates the status terminates an update with a failure.
func (s Status) IsError() bool {
	switch s {
	case StatusIdle, StatusSrvStarted, StatusCmpOK, StatusSrvExit, StatusImgStarted:
		return false
	}
	return true
}

// Memory device commands carried in the high byte of WRITE_MEMDEV.
const (
	MemDevImage  byte = 0x13
	MemDevEnd    byte = 0xfd
	MemDevReboot byte = 0xfe
	MemDevAbort  byte = 0xff
)

// MemDevValue composes a WRITE_MEMDEV value.
func MemDevValue(cmd, bank byte) uint32 {
	return uint32(cmd)<<24 | uint32(bank)
}
