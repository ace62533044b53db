package chain

import "fmt"

// SplitAddress extracts the workchain and account parts of a destination
// address, mirroring the source's split_address helper.
func SplitAddress(addr *Address) (workchain int32, account AccountID, err error) {
	if addr == nil {
		return 0, AccountID{}, fmt.Errorf("chain: nil destination address")
	}
	return addr.Workchain, addr.Account, nil
}

// SupportedWorkchain reports whether the registry accepts messages for
// this workchain (masterchain and the base workchain only).
func SupportedWorkchain(workchain int32) bool {
	return workchain == MasterchainID || workchain == BaseWorkchainID
}
