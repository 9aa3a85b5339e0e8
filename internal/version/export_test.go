package version

import "runtime/debug"

func (i *Info) ApplyVCSForTest(s []debug.BuildSetting) { i.applyVCS(s) }
