package main

func main() {
	// parse flags and positional arguments
	InitFlag()
	// start the safe-exit signal listener
	InitSafeExit()
	// load the optional config file
	InitConf(configPath)
	// set up logging
	InitLog()
	// run the generation task
	InitTask()
}
