package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"fyne.io/fyne"
	"fyne.io/fyne/app"
	"fyne.io/fyne/dialog"
	"fyne.io/fyne/layout"
	"fyne.io/fyne/storage"
	"fyne.io/fyne/theme"
	"fyne.io/fyne/widget"
	"github.com/sirupsen/logrus"

	"github.com/serialsplit/splitgui/com0com"
	"github.com/serialsplit/splitgui/hub4com"
	"github.com/serialsplit/splitgui/serialport"
)

type paddedTheme struct {
	fyne.Theme
}

func (p paddedTheme) Padding() int { return 8 }

var baudRates = []string{
	"1200", "2400", "4800", "9600", "14400", "19200",
	"38400", "57600", "115200", "230400", "460800", "921600",
}

const (
	modeOneWay = "One-way"
	modeTwoWay = "Two-way"
	modeAll    = "Network (all-to-all)"
)

func main() {
	cfg := loadConfig()
	setupcPath := flag.String("setupc", cfg.SetupcPath, "Path to com0com's setupc.exe.")
	hub4comPath := flag.String("hub4com", cfg.Hub4comPath, "Path to hub4com.exe (blank searches the usual places).")
	logLevel := flag.String("log-level", cfg.LogLevel, "Log level: trace, debug, info, warn, error or off.")
	full := flag.Bool("fullscreen", cfg.Fullscreen, "Run in fullscreen.")
	flag.Parse()
	cfg.SetupcPath = *setupcPath
	cfg.Hub4comPath = *hub4comPath
	cfg.LogLevel = *logLevel
	cfg.Fullscreen = *full

	log := newLogger(cfg.LogLevel)
	log.Info("serial port splitter starting")

	setupc := com0com.New(cfg.SetupcPath, log)
	scanner := serialport.NewScanner(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := app.New()
	if cfg.Theme == "dark" {
		a.Settings().SetTheme(paddedTheme{theme.DarkTheme()})
	} else {
		a.Settings().SetTheme(paddedTheme{theme.LightTheme()})
	}

	w := a.NewWindow("Serial Port Splitter")
	w.Resize(fyne.NewSize(1000, 760))
	if cfg.Fullscreen {
		w.SetFullScreen(true)
	}

	// Application state. It is owned by the dispatch goroutine: handlers and
	// background workers send mutation funcs onto ui instead of touching it
	// directly. dispatchLoop starts once the whole form is built, after the
	// last refreshFns append.
	var (
		ports   []serialport.Info
		lastSeq uint64
		pairs   []com0com.PortPair
		proc    *hub4com.Process
		mon     *serialport.Monitor
	)

	var refreshFns []func()
	ui := make(chan func(), 16)
	// refresh nudges the dispatch loop to re-run refreshFns. Non-blocking so
	// widget callbacks fired from inside a refresh cannot wedge the loop.
	refresh := func() {
		select {
		case ui <- func() {}:
		default:
		}
	}

	outLog := newOutputLog()

	rates := baudRates
	if !containsString(rates, strconv.Itoa(cfg.DefaultBaud)) {
		rates = append([]string{strconv.Itoa(cfg.DefaultBaud)}, rates...)
	}

	// Incoming port.
	inPort := widget.NewSelect(nil, func(string) { refresh() })
	inPort.PlaceHolder = "scanning..."
	inBaud := widget.NewSelect(rates, func(string) { refresh() })
	inBaud.SetSelected(strconv.Itoa(cfg.DefaultBaud))
	inCTS := widget.NewCheck("CTS handshake", func(bool) { refresh() })
	inCTS.SetChecked(true)
	inType := widget.NewLabel("Type: unknown")

	// Output ports.
	type outputRow struct {
		port *widget.Select
		baud *widget.Select
		cts  *widget.Check
		row  fyne.CanvasObject
	}
	var outRows []*outputRow
	outputsBox := widget.NewVBox()

	redrawOutputs := func() {
		children := make([]fyne.CanvasObject, len(outRows))
		for i, r := range outRows {
			children[i] = r.row
		}
		outputsBox.Children = children
		outputsBox.Refresh()
	}

	addOutputRow := func(portName string, baud int) {
		r := &outputRow{
			port: widget.NewSelect(portNames(ports), func(string) { refresh() }),
			baud: widget.NewSelect(rates, func(string) { refresh() }),
			cts:  widget.NewCheck("CTS", func(bool) { refresh() }),
		}
		r.port.PlaceHolder = "Select port"
		if portName != "" {
			r.port.Selected = portName
		}
		r.baud.SetSelected(strconv.Itoa(baud))
		r.cts.SetChecked(true)
		remove := widget.NewButtonWithIcon("", theme.DeleteIcon(), func() {
			ui <- func() {
				for i, cand := range outRows {
					if cand == r {
						outRows = append(outRows[:i], outRows[i+1:]...)
						break
					}
				}
				redrawOutputs()
			}
		})
		r.row = fyne.NewContainerWithLayout(layout.NewHBoxLayout(), r.port, r.baud, r.cts, remove)
		outRows = append(outRows, r)
		redrawOutputs()
	}

	addOutput := widget.NewButtonWithIcon("Add output", theme.ContentAddIcon(), func() {
		ui <- func() { addOutputRow("", cfg.DefaultBaud) }
	})
	syncBaud := widget.NewCheck("Match incoming baud", func(bool) { refresh() })
	refreshFns = append(refreshFns, func() {
		if !syncBaud.Checked {
			return
		}
		for _, r := range outRows {
			if r.baud.Selected != inBaud.Selected {
				r.baud.SetSelected(inBaud.Selected)
			}
		}
	})

	// Port lists for every select, re-filled after each scan.
	refreshFns = append(refreshFns, func() {
		names := portNames(ports)
		placeholder := "Select port"
		if len(names) == 0 {
			placeholder = "No devices found"
		}
		update := func(sel *widget.Select) {
			sel.PlaceHolder = placeholder
			sel.Options = names
			sel.Refresh()
		}
		update(inPort)
		for _, r := range outRows {
			update(r.port)
		}
	})

	refreshFns = append(refreshFns, func() {
		info, ok := findPort(ports, inPort.Selected)
		if !ok {
			inType.SetText("Type: unknown")
			return
		}
		inType.SetText("Type: " + info.Type.String() + " (" + info.Desc + ")")
	})

	// Routing options.
	routeMode := modeTwoWay
	modeSel := widget.NewRadioGroup([]string{modeOneWay, modeTwoWay, modeAll}, nil)
	modeSel.Horizontal = true
	modeSel.OnChanged = func(val string) {
		if val == "" {
			modeSel.SetSelected(routeMode)
			return
		}
		routeMode = val
		refresh()
	}
	modeSel.SetSelected(modeTwoWay)

	echoCheck := widget.NewCheck("Echo to incoming port", func(bool) { refresh() })
	fcCheck := widget.NewCheck("Add CTS flow-control route", func(bool) { refresh() })
	noFCCheck := widget.NewCheck("Disable default flow control", func(bool) { refresh() })

	currentInput := func() hub4com.PortConfig {
		return hub4com.PortConfig{
			Name:   inPort.Selected,
			Baud:   atoiDefault(inBaud.Selected, cfg.DefaultBaud),
			UseCTS: inCTS.Checked,
		}
	}
	currentOutputs := func() []hub4com.PortConfig {
		outs := make([]hub4com.PortConfig, 0, len(outRows))
		for _, r := range outRows {
			outs = append(outs, hub4com.PortConfig{
				Name:   r.port.Selected,
				Baud:   atoiDefault(r.baud.Selected, cfg.DefaultBaud),
				UseCTS: r.cts.Checked,
			})
		}
		return outs
	}
	currentOptions := func() hub4com.Options {
		return hub4com.Options{
			Mode:        routeModeFromLabel(routeMode),
			Echo:        echoCheck.Checked,
			FCRoute:     fcCheck.Checked,
			NoDefaultFC: noFCCheck.Checked,
		}
	}

	// Command preview.
	preview := widget.NewLabel("hub4com.exe")
	preview.TextStyle.Monospace = true
	var previewCmd string
	copyBtn := widget.NewButtonWithIcon("Copy", theme.ContentCopyIcon(), func() {
		if previewCmd != "" {
			w.Clipboard().SetContent(previewCmd)
		}
	})
	refreshFns = append(refreshFns, func() {
		args, err := hub4com.BuildArgs(currentInput(), currentOutputs(), currentOptions())
		if err != nil {
			previewCmd = ""
			preview.SetText("(" + err.Error() + ")")
			return
		}
		exe := cfg.Hub4comPath
		if exe == "" {
			exe = "hub4com.exe"
		}
		previewCmd = hub4com.CommandLine(exe, args)
		preview.SetText(previewCmd)
	})

	// Port pairs.
	pairSel := widget.NewSelect(nil, func(string) { refresh() })
	pairSel.PlaceHolder = "No pairs"
	pairDetail := widget.NewLabel("No pair selected.")
	pairDetail.TextStyle.Monospace = true

	selectedPair := func() (com0com.PortPair, bool) {
		n, ok := pairNumberFromLabel(pairSel.Selected)
		if !ok {
			return com0com.PortPair{}, false
		}
		for _, p := range pairs {
			if p.Number == n {
				return p, true
			}
		}
		return com0com.PortPair{}, false
	}

	refreshFns = append(refreshFns, func() {
		opts := make([]string, len(pairs))
		for i, p := range pairs {
			opts[i] = pairLabel(p)
		}
		pairSel.Options = opts
		pairSel.Refresh()

		p, ok := selectedPair()
		if !ok {
			pairDetail.SetText("No pair selected.")
			return
		}
		pairDetail.SetText(describePair(p))
	})

	refreshPairs := func() {
		go func() {
			got, err := setupc.List(ctx)
			ui <- func() {
				if err != nil {
					outLog.Error("Listing port pairs failed: " + friendlyError(err))
					return
				}
				pairs = got
			}
		}()
	}

	toggleParam := func(param string) {
		ui <- func() {
			p, ok := selectedPair()
			if !ok {
				go dialog.ShowInformation("No pair selected", "Select a port pair first.", w)
				return
			}
			val := "yes"
			if p.A.Params[param] == "yes" {
				val = "no"
			}
			setting := param + "=" + val
			go func() {
				var err error
				for _, id := range []string{p.A.ID, p.B.ID} {
					if err = setupc.Change(ctx, id, setting); err != nil {
						break
					}
				}
				ui <- func() {
					if err != nil {
						outLog.Error("Changing " + setting + " failed: " + friendlyError(err))
						go dialog.ShowError(errors.New(friendlyError(err)), w)
						return
					}
					outLog.OK(fmt.Sprintf("Pair %d: set %s on both ends", p.Number, setting))
				}
				refreshPairs()
			}()
		}
	}
	emuBRBtn := widget.NewButton("Toggle baud emulation", func() { toggleParam("EmuBR") })
	emuORBtn := widget.NewButton("Toggle overrun emulation", func() { toggleParam("EmuOverrun") })

	// Scanning.
	doScan := func() {
		ch := scanner.Scan(ctx)
		go func() {
			res := <-ch
			ui <- func() {
				if res.Seq < lastSeq {
					return // a newer scan already landed
				}
				lastSeq = res.Seq
				if res.Err != nil {
					ports = nil
					outLog.Error("Port scan failed: " + friendlyError(res.Err))
					return
				}
				ports = res.Ports
				outLog.Info(fmt.Sprintf("Scan found %d ports", len(ports)))
			}
		}()
	}

	// Status line and process supervision.
	statusLbl := widget.NewLabel("hub4com: not running")

	handleExit := func(p *hub4com.Process, ev hub4com.ExitEvent, early bool) {
		if proc == p {
			proc = nil
			statusLbl.SetText("hub4com: not running")
		}
		switch {
		case ev.Stopped:
			outLog.OK(fmt.Sprintf("Routing stopped (exit status %d)", ev.Code))
		case early:
			msg := fmt.Sprintf("hub4com exited immediately (status %d). Check the port names and make sure no other program holds the ports.", ev.Code)
			outLog.Error(msg)
			detail := msg
			if len(ev.Tail) > 0 {
				detail += "\n\nLast output:\n" + strings.Join(ev.Tail, "\n")
			}
			go dialog.ShowInformation("Routing failed", detail, w)
		case ev.Err != nil:
			outLog.Error("hub4com: " + ev.Err.Error())
		case ev.Code != 0:
			outLog.Error(fmt.Sprintf("hub4com exited with status %d", ev.Code))
		default:
			outLog.Info("hub4com exited")
		}
	}

	// launchRouting runs on the dispatch goroutine and reads the form as it
	// stands; a confirmation that flipped a widget is picked up on re-entry.
	launchRouting := func() {
		input := currentInput()
		outputs := currentOutputs()
		opts := currentOptions()

		args, err := hub4com.BuildArgs(input, outputs, opts)
		if err != nil {
			go dialog.ShowError(err, w)
			return
		}
		exe, err := hub4com.LocateExe(cfg.Hub4comPath)
		if err != nil {
			outLog.Error(friendlyError(err))
			go dialog.ShowError(errors.New(friendlyError(err)), w)
			return
		}

		p := hub4com.NewProcess(exe, args, log)
		p.Grace = cfg.StopGrace
		if err := p.Start(ctx); err != nil {
			outLog.Error("Start failed: " + friendlyError(err))
			go dialog.ShowError(errors.New(friendlyError(err)), w)
			return
		}
		proc = p
		pid := p.Pid()

		outLog.Section("Starting port routing")
		outLog.KeyValue("Incoming", describePortConfig(input))
		outLog.KeyValue("Outputs", describeOutputs(outputs))
		outLog.KeyValue("Mode", opts.Mode.String())
		outLog.KeyValue("Command", p.CommandLine())

		go func() {
			for line := range p.Output() {
				line := line
				ui <- func() { outLog.Append(line) }
			}
		}()

		// An exit within the first second is a startup failure and gets the
		// detailed diagnostic.
		go func() {
			select {
			case ev := <-p.Exit():
				ui <- func() { handleExit(p, ev, true) }
			case <-time.After(time.Second):
				ui <- func() { outLog.OK(fmt.Sprintf("Port routing started (pid %d)", pid)) }
				ev := <-p.Exit()
				ui <- func() { handleExit(p, ev, false) }
			}
		}()

		go func() {
			t := time.NewTicker(time.Second)
			defer t.Stop()
			for range t.C {
				if !p.Running() {
					return
				}
				cpu, rss, err := p.Usage()
				if err != nil {
					continue
				}
				ui <- func() {
					if proc != p {
						return
					}
					statusLbl.SetText(fmt.Sprintf("hub4com pid %d: CPU %.1f%%, memory %s", pid, cpu, formatBytes(rss)))
				}
			}
		}()
	}

	confirmBaud := func() {
		if mixedBaud(currentInput(), currentOutputs()) {
			go dialog.ShowConfirm("Baud rates differ",
				"The incoming and output baud rates do not all match.\nData can be lost if the rates are wrong. Continue anyway?",
				func(proceed bool) {
					if proceed {
						ui <- func() { launchRouting() }
					}
				}, w)
			return
		}
		launchRouting()
	}

	startRouting := func() {
		ui <- func() {
			if proc != nil && proc.Running() {
				go dialog.ShowInformation("Already running", "hub4com is already running. Stop it first.", w)
				return
			}
			input := currentInput()
			if _, err := hub4com.BuildArgs(input, currentOutputs(), currentOptions()); err != nil {
				go dialog.ShowError(err, w)
				return
			}
			if info, ok := findPort(ports, input.Name); ok && info.Type == serialport.VirtualMoxa && input.UseCTS {
				go dialog.ShowConfirm("Moxa Port Detected",
					"Moxa virtual ports often leave CTS unasserted, which blocks all data.\nDisable the CTS handshake for this run?",
					func(disable bool) {
						ui <- func() {
							if disable {
								inCTS.SetChecked(false)
							}
							confirmBaud()
						}
					}, w)
				return
			}
			confirmBaud()
		}
	}

	stopRouting := func() {
		ui <- func() {
			if proc == nil || !proc.Running() {
				return
			}
			p := proc
			prog := dialog.NewProgressInfinite("Stopping", "Asking hub4com to close...", w)
			go func() {
				err := p.Stop()
				prog.Hide()
				if err != nil {
					ui <- func() { outLog.Error("Stop failed: " + err.Error()) }
					go dialog.ShowError(err, w)
				}
			}()
		}
	}

	// Pair management dialogs.
	showCreatePair := func() {
		nameA := widget.NewEntry()
		nameA.SetPlaceHolder("auto")
		nameB := widget.NewEntry()
		nameB.SetPlaceHolder("auto")
		number := widget.NewEntry()
		number.SetPlaceHolder("auto")
		emuBR := widget.NewCheck("", nil)
		emuBR.SetChecked(true)
		emuOverrun := widget.NewCheck("", nil)
		emuOverrun.SetChecked(true)

		form := widget.NewForm(
			widget.NewFormItem("Port name A", nameA),
			widget.NewFormItem("Port name B", nameB),
			widget.NewFormItem("Pair number", number),
			widget.NewFormItem("Baud emulation", emuBR),
			widget.NewFormItem("Overrun emulation", emuOverrun),
		)

		dialog.ShowCustomConfirm("Create Port Pair", "Create", "Cancel", form, func(create bool) {
			if !create {
				return
			}
			spec := com0com.PairSpec{
				Number:     -1,
				PortNameA:  strings.ToUpper(strings.TrimSpace(nameA.Text)),
				PortNameB:  strings.ToUpper(strings.TrimSpace(nameB.Text)),
				EmuBR:      emuBR.Checked,
				EmuOverrun: emuOverrun.Checked,
			}
			if txt := strings.TrimSpace(number.Text); txt != "" {
				n, err := strconv.Atoi(txt)
				if err != nil || n < 0 {
					dialog.ShowError(fmt.Errorf("pair number must be a non-negative integer, got %q", txt), w)
					return
				}
				spec.Number = n
			}
			prog := dialog.NewProgressInfinite("Creating Pair", "Running setupc install...", w)
			go func() {
				pair, err := setupc.Create(ctx, spec)
				prog.Hide()
				ui <- func() {
					if err != nil {
						outLog.Error("Create pair failed: " + friendlyError(err))
						go dialog.ShowError(errors.New(friendlyError(err)), w)
						return
					}
					outLog.OK("Created " + pairLabel(pair))
				}
				refreshPairs()
				doScan()
			}()
		}, w)
	}

	removeSelectedPair := func() {
		ui <- func() {
			p, ok := selectedPair()
			if !ok {
				go dialog.ShowInformation("No pair selected", "Select a port pair to remove.", w)
				return
			}
			go dialog.ShowConfirm("Remove Port Pair",
				fmt.Sprintf("Remove pair %d (%s)?\nApplications holding these ports will lose them.", p.Number, p),
				func(proceed bool) {
					if !proceed {
						return
					}
					prog := dialog.NewProgressInfinite("Removing Pair", "Running setupc remove...", w)
					go func() {
						err := setupc.Remove(ctx, p.Number)
						prog.Hide()
						ui <- func() {
							switch {
							case errors.Is(err, com0com.ErrPairNotFound):
								outLog.Warn(friendlyError(err))
							case err != nil:
								outLog.Error("Remove pair failed: " + friendlyError(err))
								go dialog.ShowError(errors.New(friendlyError(err)), w)
							default:
								outLog.OK(fmt.Sprintf("Removed pair %d", p.Number))
							}
						}
						refreshPairs()
						doScan()
					}()
				}, w)
		}
	}

	exportReport := func() {
		ui <- func() {
			report := scanReport(ports, pairs)
			go func() {
				save := dialog.NewFileSave(func(wc fyne.URIWriteCloser, err error) {
					if err != nil {
						dialog.ShowError(err, w)
						return
					}
					if wc == nil {
						return
					}
					defer wc.Close()
					if _, err := io.WriteString(wc, report); err != nil {
						dialog.ShowError(err, w)
						return
					}
					ui <- func() { outLog.OK("Exported port report to " + wc.Name()) }
				}, w)
				save.SetFilter(storage.NewExtensionFileFilter([]string{".txt"}))
				save.Show()
			}()
		}
	}

	// Port monitor tab.
	monPort := widget.NewSelect(nil, nil)
	monPort.PlaceHolder = "Select port"
	monBaud := widget.NewSelect(rates, nil)
	monBaud.SetSelected(strconv.Itoa(cfg.DefaultBaud))
	monStats := widget.NewLabel("Not monitoring.")
	monStats.TextStyle.Monospace = true
	refreshFns = append(refreshFns, func() {
		monPort.Options = portNames(ports)
		monPort.Refresh()
	})

	monStart := widget.NewButton("Start monitoring", nil)
	monStop := widget.NewButton("Stop monitoring", nil)
	monStart.OnTapped = func() {
		ui <- func() {
			if mon != nil {
				return
			}
			port := monPort.Selected
			if port == "" {
				go dialog.ShowInformation("No port selected", "Pick a port to monitor first.", w)
				return
			}
			m := serialport.NewMonitor(port, atoiDefault(monBaud.Selected, cfg.DefaultBaud), log)
			if err := m.Start(); err != nil {
				go dialog.ShowError(err, w)
				return
			}
			mon = m
			outLog.Info("Monitoring " + port)
			go func() {
				for st := range m.Stats() {
					st := st
					ui <- func() {
						if mon != m {
							return
						}
						monStats.SetText(formatMonitorStats(port, st))
					}
				}
			}()
		}
	}
	monStop.OnTapped = func() {
		ui <- func() {
			if mon == nil {
				return
			}
			m := mon
			mon = nil
			monStats.SetText("Not monitoring.")
			outLog.Info("Stopped monitoring " + m.Port())
			go m.Stop()
		}
	}
	refreshFns = append(refreshFns, func() {
		if mon == nil {
			monStart.Enable()
			monStop.Disable()
		} else {
			monStart.Disable()
			monStop.Enable()
		}
	})

	testBtn := widget.NewButton("Test Port", func() {
		ui <- func() {
			port := monPort.Selected
			if port == "" {
				go dialog.ShowInformation("No port selected", "Pick a port to test first.", w)
				return
			}
			prog := dialog.NewProgressInfinite("Testing Port", "Probing "+port+"...", w)
			go func() {
				rep, err := serialport.TestPort(port)
				prog.Hide()
				if err != nil {
					ui <- func() { outLog.Warn("Port test " + port + ": " + err.Error()) }
					go dialog.ShowError(err, w)
					return
				}
				ui <- func() { outLog.OK("Port test passed for " + port) }
				go dialog.ShowInformation("Port Test: "+port, rep.Format(), w)
			}()
		}
	})

	showHelp := func() {
		dialog.ShowInformation("Serial Port Splitter",
			"Route one incoming serial port to several applications.\n\n"+
				"1. Pick the incoming port and baud rate.\n"+
				"2. Add an output port per application (COM131 and COM141 are prepared for you).\n"+
				"3. Press Start, then connect your applications to the paired ports (COM132, COM142).\n\n"+
				"Port pairs come from the com0com driver; routing runs through hub4com.",
			w)
	}

	// Toolbar.
	scanBtn := widget.NewButtonWithIcon("", theme.ViewRefreshIcon(), func() {
		doScan()
		refreshPairs()
	})
	createBtn := widget.NewButtonWithIcon("", theme.ContentAddIcon(), func() { showCreatePair() })
	removeBtn := widget.NewButtonWithIcon("", theme.DeleteIcon(), func() { removeSelectedPair() })
	startBtn := widget.NewButtonWithIcon("", theme.MediaPlayIcon(), func() { startRouting() })
	stopBtn := widget.NewButtonWithIcon("", theme.CancelIcon(), func() { stopRouting() }) // fyne v1 has no MediaStopIcon (v2-only); CancelIcon is the nearest v1 glyph
	exportBtn := widget.NewButtonWithIcon("", theme.DocumentSaveIcon(), func() { exportReport() })
	helpBtn := widget.NewButtonWithIcon("", theme.HelpIcon(), func() { showHelp() })

	refreshFns = append(refreshFns, func() {
		if proc != nil && proc.Running() {
			startBtn.Disable()
			stopBtn.Enable()
		} else {
			startBtn.Enable()
			stopBtn.Disable()
		}
	})

	toolbar := fyne.NewContainerWithLayout(layout.NewHBoxLayout(),
		fyne.NewContainerWithLayout(NewSquareRowLayout(48),
			scanBtn, createBtn, removeBtn, startBtn, stopBtn, exportBtn, helpBtn,
		),
		layout.NewSpacer(),
		widget.NewVBox(layout.NewSpacer(), statusLbl, layout.NewSpacer()),
	)

	incoming := widget.NewGroup("Incoming Port",
		fyne.NewContainerWithLayout(layout.NewHBoxLayout(),
			inPort, inBaud, inCTS, layout.NewSpacer(), inType,
		),
	)
	outputs := widget.NewGroup("Output Ports",
		outputsBox,
		fyne.NewContainerWithLayout(layout.NewHBoxLayout(), addOutput, syncBaud, layout.NewSpacer()),
	)
	routing := widget.NewGroup("Routing",
		modeSel,
		fyne.NewContainerWithLayout(layout.NewHBoxLayout(), echoCheck, fcCheck, noFCCheck, layout.NewSpacer()),
	)
	previewGrp := widget.NewGroup("Command Preview",
		widget.NewHScrollContainer(preview),
		fyne.NewContainerWithLayout(layout.NewHBoxLayout(), layout.NewSpacer(), copyBtn),
	)
	pairsGrp := widget.NewGroup("Port Pairs",
		fyne.NewContainerWithLayout(layout.NewHBoxLayout(), pairSel, emuBRBtn, emuORBtn, layout.NewSpacer()),
		pairDetail,
	)

	monitorTab := widget.NewVBox(
		fyne.NewContainerWithLayout(layout.NewHBoxLayout(),
			monPort, monBaud, monStart, monStop, testBtn, layout.NewSpacer(),
		),
		monStats,
	)
	clearLogBtn := widget.NewButton("Clear", func() { outLog.Clear() })
	clearRow := fyne.NewContainerWithLayout(layout.NewHBoxLayout(), layout.NewSpacer(), clearLogBtn)
	logTab := fyne.NewContainerWithLayout(
		layout.NewBorderLayout(nil, clearRow, nil, nil),
		widget.NewScrollContainer(outLog.view), clearRow,
	)
	tabs := widget.NewTabContainer(
		widget.NewTabItem("Output Log", logTab),
		widget.NewTabItem("Port Monitor", monitorTab),
	)

	top := widget.NewVBox(toolbar, incoming, outputs, routing, previewGrp, pairsGrp)
	w.SetContent(fyne.NewContainerWithLayout(
		layout.NewBorderLayout(top, nil, nil, nil),
		top, tabs,
	))

	// First scan can run before the window is up; the default-pair setup
	// waits for it so its dialogs have a parent.
	doScan()

	readyCh := make(chan struct{})
	go func() {
		<-readyCh

		prog := dialog.NewProgressInfinite("Preparing Virtual Ports", "Checking the default com0com pairs...", w)
		created, existing, err := setupc.EnsureDefaultPairs(ctx)
		prog.Hide()

		ui <- func() {
			if err != nil {
				outLog.Error("Default pair setup failed: " + friendlyError(err))
				go dialog.ShowError(errors.New(friendlyError(err)), w)
				return
			}
			for _, p := range created {
				outLog.OK("Created default pair " + pairLabel(p))
			}
			for _, p := range existing {
				outLog.Info("Default pair already present: " + pairLabel(p))
			}
			if len(outRows) == 0 {
				addOutputRow("COM131", cfg.DefaultBaud)
				addOutputRow("COM141", cfg.DefaultBaud)
			}
			outLog.Info(fmt.Sprintf("Output routing configured: COM131 & COM141 @ %d baud, two-way mode enabled", cfg.DefaultBaud))
			if cfg.ShowSummary {
				go dialog.ShowInformation("Ready to Route", launchSummary(created, existing, cfg.DefaultBaud), w)
			}
		}
		refreshPairs()
		doScan()
	}()

	go dispatchLoop(ui, refreshFns)

	w.Show()
	close(readyCh)
	a.Run()

	// Window closed: take the child and the monitor down before exiting.
	shutdown(ui, func() (*hub4com.Process, *serialport.Monitor) { return proc, mon }, log)
}

// dispatchLoop runs queued state mutations and re-runs every refresh func
// after each one. refreshFns is complete before the loop starts; nothing
// appends to it afterwards.
func dispatchLoop(ui <-chan func(), refreshFns []func()) {
	for fn := range ui {
		fn()
		for _, rf := range refreshFns {
			rf()
		}
	}
}

// shutdown stops whatever is still running once the window has closed. The
// handles live on the dispatch goroutine and are fetched there; the Stops
// run on the calling goroutine while the dispatcher keeps draining queued
// output.
func shutdown(ui chan<- func(), handles func() (*hub4com.Process, *serialport.Monitor), log *logrus.Logger) {
	var (
		p *hub4com.Process
		m *serialport.Monitor
	)
	fetched := make(chan struct{})
	ui <- func() {
		p, m = handles()
		close(fetched)
	}
	<-fetched

	if p != nil {
		if err := p.Stop(); err != nil {
			log.Warnf("stopping hub4com on exit: %v", err)
		}
	}
	if m != nil {
		m.Stop()
	}
}

func routeModeFromLabel(label string) hub4com.RouteMode {
	switch label {
	case modeOneWay:
		return hub4com.RouteOneWay
	case modeAll:
		return hub4com.RouteAll
	}
	return hub4com.RouteTwoWay
}

func pairLabel(p com0com.PortPair) string {
	return fmt.Sprintf("Pair %d: %s", p.Number, p)
}

func pairNumberFromLabel(label string) (int, bool) {
	rest, ok := strings.CutPrefix(label, "Pair ")
	if !ok {
		return 0, false
	}
	numStr, _, ok := strings.Cut(rest, ":")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(numStr))
	if err != nil {
		return 0, false
	}
	return n, true
}

func describePair(p com0com.PortPair) string {
	return fmt.Sprintf("%s  %s\n%s  %s",
		p.A.ID, formatParams(p.A.Params), p.B.ID, formatParams(p.B.Params))
}

func formatParams(params map[string]string) string {
	if len(params) == 0 {
		return "defaults"
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + params[k]
	}
	return strings.Join(parts, ",")
}

func describePortConfig(p hub4com.PortConfig) string {
	s := fmt.Sprintf("%s @ %d baud", p.Name, p.Baud)
	if !p.UseCTS {
		s += ", CTS off"
	}
	return s
}

func describeOutputs(outs []hub4com.PortConfig) string {
	parts := make([]string, len(outs))
	for i, o := range outs {
		parts[i] = describePortConfig(o)
	}
	return strings.Join(parts, "; ")
}

func portNames(ports []serialport.Info) []string {
	names := make([]string, len(ports))
	for i, p := range ports {
		names[i] = p.Port
	}
	return names
}

func findPort(ports []serialport.Info, name string) (serialport.Info, bool) {
	for _, p := range ports {
		if strings.EqualFold(p.Port, name) {
			return p, true
		}
	}
	return serialport.Info{}, false
}

// mixedBaud reports whether any output runs at a different rate than the
// incoming port.
func mixedBaud(input hub4com.PortConfig, outputs []hub4com.PortConfig) bool {
	for _, o := range outputs {
		if o.Baud != input.Baud {
			return true
		}
	}
	return false
}

func atoiDefault(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func formatRate(bytesPerSec float64) string {
	switch {
	case bytesPerSec < 1024:
		return fmt.Sprintf("%.0f B/s", bytesPerSec)
	case bytesPerSec < 1024*1024:
		return fmt.Sprintf("%.1f K/s", bytesPerSec/1024)
	}
	return fmt.Sprintf("%.1f M/s", bytesPerSec/(1024*1024))
}

func formatBytes(n uint64) string {
	switch {
	case n < 1024:
		return fmt.Sprintf("%d B", n)
	case n < 1024*1024:
		return fmt.Sprintf("%.1f KB", float64(n)/1024)
	}
	return fmt.Sprintf("%.1f MB", float64(n)/(1024*1024))
}

func formatDuration(d time.Duration) string {
	secs := int(d.Seconds())
	if secs < 60 {
		return fmt.Sprintf("%ds", secs)
	}
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}

func formatMonitorStats(port string, st serialport.Stats) string {
	state := "open"
	if !st.Open {
		state = "closed"
	}
	s := fmt.Sprintf("%s (%s)\nReceived: %s  Rate: %s\nErrors: %d  Running: %s",
		port, state, formatBytes(uint64(st.RxBytes)), formatRate(st.RxRate),
		st.Errors, formatDuration(st.Running))
	if st.LastError != "" {
		s += "\nLast error: " + st.LastError
	}
	return s
}

// scanReport renders the exportable port and pair listing.
func scanReport(ports []serialport.Info, pairs []com0com.PortPair) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Serial Port Splitter report, %s\n\n", time.Now().Format("2006-01-02 15:04:05"))

	fmt.Fprintf(&b, "Ports (%d):\n", len(ports))
	for _, p := range ports {
		fmt.Fprintf(&b, "  %-8s %-20s %s\n", p.Port, p.Type, p.Device)
	}
	if len(ports) == 0 {
		b.WriteString("  none\n")
	}

	fmt.Fprintf(&b, "\ncom0com pairs (%d):\n", len(pairs))
	for _, p := range pairs {
		fmt.Fprintf(&b, "  Pair %d: %s\n", p.Number, p)
	}
	if len(pairs) == 0 {
		b.WriteString("  none\n")
	}
	return b.String()
}

func launchSummary(created, existing []com0com.PortPair, baud int) string {
	var b strings.Builder
	b.WriteString("Virtual port pairs are ready.\n\n")
	for _, p := range created {
		fmt.Fprintf(&b, "Created: %s\n", p)
	}
	for _, p := range existing {
		fmt.Fprintf(&b, "Existing: %s\n", p)
	}
	fmt.Fprintf(&b, "\nDefault routing: COM131 & COM141 @ %d baud, two-way.\n", baud)
	b.WriteString("Connect external applications to COM132 & COM142.")
	return b.String()
}
