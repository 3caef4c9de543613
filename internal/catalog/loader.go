package catalog

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"
)

//go:embed data/*.json
var embeddedData embed.FS

const (
	scheduleFile = "schedule.json"
	holidaysFile = "holidays.json"
	examsFile    = "exams.json"
)

// ── 目录文件结构（与前端共用的 JSON 格式） ──

type scheduleDoc struct {
	SemesterConfig struct {
		Start string `json:"start"`
		End   string `json:"end"`
	} `json:"semesterConfig"`
	Classes []classDoc `json:"classes"`
}

type classDoc struct {
	Day         string `json:"day"`
	SubjectCode string `json:"subject_code"`
	SubjectName string `json:"subject_name"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	Room        string `json:"room"`
	Type        string `json:"type"`
	Branch      string `json:"branch"`
	Group       string `json:"group"`
}

type holidaysDoc struct {
	Holidays []struct {
		Date string `json:"date"`
		Name string `json:"name"`
	} `json:"holidays"`
}

type examsDoc struct {
	Periods []struct {
		Start string `json:"start"`
		End   string `json:"end"`
		Name  string `json:"name"`
	} `json:"periods"`
}

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// ParseWeekday 解析英文星期名（大小写不敏感）
func ParseWeekday(name string) (time.Weekday, error) {
	wd, ok := weekdayNames[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("%w: 无效的星期 %q", ErrInvalidCatalog, name)
	}
	return wd, nil
}

// Load 加载课表目录
// dir 为空时读取内嵌数据，否则从该目录读取三个 JSON 文件
func Load(dir string) (*Catalog, error) {
	var fsys fs.FS
	if dir == "" {
		sub, err := fs.Sub(embeddedData, "data")
		if err != nil {
			return nil, fmt.Errorf("读取内嵌课表目录失败: %w", err)
		}
		fsys = sub
	} else {
		fsys = os.DirFS(dir)
	}
	return LoadFS(fsys)
}

// LoadFS 从任意文件系统加载课表目录
func LoadFS(fsys fs.FS) (*Catalog, error) {
	var sched scheduleDoc
	if err := readJSON(fsys, scheduleFile, &sched); err != nil {
		return nil, err
	}
	var hols holidaysDoc
	if err := readJSON(fsys, holidaysFile, &hols); err != nil {
		return nil, err
	}
	var exams examsDoc
	if err := readJSON(fsys, examsFile, &exams); err != nil {
		return nil, err
	}

	start, err := parseCatalogDate("semesterConfig.start", sched.SemesterConfig.Start)
	if err != nil {
		return nil, err
	}
	end, err := parseCatalogDate("semesterConfig.end", sched.SemesterConfig.End)
	if err != nil {
		return nil, err
	}

	classes := make([]ScheduledClass, 0, len(sched.Classes))
	for _, cd := range sched.Classes {
		day, err := ParseWeekday(cd.Day)
		if err != nil {
			return nil, err
		}
		classes = append(classes, ScheduledClass{
			Day:         day,
			SubjectCode: strings.TrimSpace(cd.SubjectCode),
			SubjectName: cd.SubjectName,
			StartTime:   cd.StartTime,
			EndTime:     cd.EndTime,
			Room:        cd.Room,
			Type:        cd.Type,
			Branch:      strings.ToUpper(strings.TrimSpace(cd.Branch)),
			Group:       strings.ToUpper(strings.TrimSpace(cd.Group)),
		})
	}

	holidays := make([]HolidayEntry, 0, len(hols.Holidays))
	for _, h := range hols.Holidays {
		d, err := parseCatalogDate("holidays.date", h.Date)
		if err != nil {
			return nil, err
		}
		holidays = append(holidays, HolidayEntry{Date: d, Name: h.Name})
	}

	periods := make([]ExamPeriod, 0, len(exams.Periods))
	for _, p := range exams.Periods {
		ps, err := parseCatalogDate("periods.start", p.Start)
		if err != nil {
			return nil, err
		}
		pe, err := parseCatalogDate("periods.end", p.End)
		if err != nil {
			return nil, err
		}
		periods = append(periods, ExamPeriod{Start: ps, End: pe, Name: p.Name})
	}

	return New(start, end, classes, holidays, periods)
}

func readJSON(fsys fs.FS, name string, v interface{}) error {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return fmt.Errorf("读取 %s 失败: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: 解析 %s 失败: %v", ErrInvalidCatalog, name, err)
	}
	return nil
}

func parseCatalogDate(field, value string) (time.Time, error) {
	d, err := ParseDate(value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s=%q 不是 YYYY-MM-DD", ErrInvalidCatalog, field, value)
	}
	return d, nil
}
